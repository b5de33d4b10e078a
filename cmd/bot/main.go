package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/bot"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/clients/caldav"
	"github.com/tazhate/deadlinebot/internal/scheduler"
	"github.com/tazhate/deadlinebot/internal/service"
	"github.com/tazhate/deadlinebot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	// Event sources: the local calendar file, plus CalDAV when configured
	source := calendar.NewMultiSource().
		Add("calendar file", calendar.NewFileStore(cfg.CalendarPath, cfg.Timezone))
	if remote := caldav.NewSourceFromConfig(cfg); remote != nil {
		source.Add("caldav", remote)
		log.Printf("CalDAV source enabled: %s", cfg.CalDAVURL)
	}

	formatter := service.NewMessageFormatter(cfg.Timezone)
	cache := service.NewNotificationCache()

	tgBot, err := bot.New(cfg, store, source, formatter)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	sched := scheduler.New(cfg, source, cache, formatter)
	sched.SetSender(tgBot)
	tgBot.SetScheduler(sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Printf("Deadline bot started (calendar: %s, group: %q)", cfg.CalendarPath, cfg.GroupName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping bot: %v", err)
	}

	log.Println("Deadline bot stopped")
}
