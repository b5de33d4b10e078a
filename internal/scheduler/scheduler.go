package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/service"
)

// GroupSender delivers a text message to a named group chat.
type GroupSender interface {
	SendToGroup(ctx context.Context, group, text string) error
}

// Status is what the /status command reports.
type Status struct {
	TotalEvents int
	Notified    int
}

type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	source    calendar.Source
	cache     *service.NotificationCache
	formatter *service.MessageFormatter
	sender    GroupSender

	// mu keeps ticks from overlapping: the cron job and Reload share it.
	mu  sync.Mutex
	now func() time.Time
}

func New(cfg *config.Config, source calendar.Source, cache *service.NotificationCache, formatter *service.MessageFormatter) *Scheduler {
	c := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		source:    source,
		cache:     cache,
		formatter: formatter,
		now:       time.Now,
	}
}

func (s *Scheduler) SetSender(sender GroupSender) {
	s.sender = sender
}

// Start runs one check right away, then every CheckInterval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("add reminder check: %w", err)
	}

	s.Tick(ctx)

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, interval: %s, lookahead: %s, group: %q)",
		s.cfg.Timezone, s.cfg.CheckInterval, s.cfg.Lookahead, s.cfg.GroupName)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// Tick sends one reminder for every event starting within the lookahead
// window that has not been announced yet. A failed delivery still marks
// the event as notified.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.sender == nil {
		return
	}

	events, err := s.source.ListEvents(ctx)
	if err != nil {
		log.Printf("Error loading events: %v", err)
		events = nil
	}

	now := s.now()
	sent := 0
	for _, e := range events {
		delta := e.Until(now)
		if delta <= 0 || delta > s.cfg.Lookahead {
			continue
		}

		key := e.Key()
		if s.cache.Contains(key) {
			continue
		}

		text := s.formatter.FormatUpcoming(e, delta)
		if err := s.deliver(ctx, text); err != nil {
			log.Printf("Error sending reminder for %q (%s): %v", e.Title, e.UID, err)
		} else {
			log.Printf("Reminder sent: %s", e.Title)
			sent++
		}
		s.cache.Insert(key)
	}

	if sent > 0 {
		log.Printf("Reminder check done: %d sent, %d events, %d notified", sent, len(events), s.cache.Len())
	}
}

func (s *Scheduler) deliver(ctx context.Context, text string) error {
	if s.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
		defer cancel()
	}
	return s.sender.SendToGroup(ctx, s.cfg.GroupName, text)
}

// Reload forgets every sent reminder and checks again right away.
func (s *Scheduler) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Clear()
	log.Println("Notification cache cleared")
	s.tick(ctx)
}

func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	events, err := s.source.ListEvents(ctx)
	if err != nil {
		return Status{Notified: s.cache.Len()}, fmt.Errorf("list events: %w", err)
	}
	return Status{TotalEvents: len(events), Notified: s.cache.Len()}, nil
}
