package caldav

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/domain"
)

// Source lists events of one remote calendar from now until now+horizon.
// With no calendar path the first calendar of the home set is used.
type Source struct {
	client  *Client
	horizon time.Duration
	loc     *time.Location
	now     func() time.Time

	mu   sync.Mutex
	path string
}

func NewSource(client *Client, calendarPath string, horizon time.Duration, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		client:  client,
		path:    calendarPath,
		horizon: horizon,
		loc:     loc,
		now:     time.Now,
	}
}

func (s *Source) ListEvents(ctx context.Context) ([]domain.Event, error) {
	path, err := s.calendarPath(ctx)
	if err != nil {
		return nil, err
	}

	from := s.now()
	events, err := s.client.GetEvents(ctx, path, from, from.Add(s.horizon), s.loc)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func (s *Source) calendarPath(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		return s.path, nil
	}

	cals, err := s.client.DiscoverCalendars(ctx)
	if err != nil {
		return "", err
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}
	s.path = cals[0].Path
	return s.path, nil
}

// NewSourceFromConfig returns nil when CalDAV is not configured.
func NewSourceFromConfig(cfg *config.Config) *Source {
	if !cfg.CalDAVEnabled() {
		return nil
	}
	client := NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	return NewSource(client, cfg.CalDAVCalendar, cfg.CalDAVHorizon, cfg.Timezone)
}
