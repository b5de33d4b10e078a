package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/storage"
	"github.com/tazhate/deadlinebot/internal/web"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	cal := calendar.NewFileStore(cfg.CalendarPath, cfg.Timezone)
	notifier := web.NewBotNotifier(cfg.NotifyURL, cfg.NotifyToken)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           web.NewRouter(cfg, cal, store, notifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Web front end listening on :%s (calendar: %s)", cfg.WebPort, cfg.CalendarPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error stopping web server: %v", err)
	}
}
