package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/domain"
	"github.com/tazhate/deadlinebot/internal/scheduler"
	"github.com/tazhate/deadlinebot/internal/service"
	"github.com/tazhate/deadlinebot/internal/storage"
)

// ErrRecipientNotFound is returned when no known group matches the target name.
var ErrRecipientNotFound = errors.New("recipient not found")

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	storage   *storage.Storage
	source    calendar.Source
	formatter *service.MessageFormatter
	scheduler *scheduler.Scheduler
	server    *http.Server
	now       func() time.Time
}

func New(cfg *config.Config, store *storage.Storage, source calendar.Source, formatter *service.MessageFormatter) (*Bot, error) {
	// long polling holds a request open for up to 60s
	client := &http.Client{Timeout: 90 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	b := newWithAPI(cfg, api, store, source, formatter)
	b.setCommands()
	return b, nil
}

func newWithAPI(cfg *config.Config, api *tgbotapi.BotAPI, store *storage.Storage, source calendar.Source, formatter *service.MessageFormatter) *Bot {
	return &Bot{
		api:       api,
		cfg:       cfg,
		storage:   store,
		source:    source,
		formatter: formatter,
		now:       time.Now,
	}
}

// SetScheduler enables /status and /reload.
func (b *Bot) SetScheduler(s *scheduler.Scheduler) {
	b.scheduler = s
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "upcoming", Description: "📅 Próximos eventos"},
		{Command: "today", Description: "🗓 Eventos de hoje"},
		{Command: "subjects", Description: "📚 Disciplinas"},
		{Command: "status", Description: "📊 Status do lembrete"},
		{Command: "help", Description: "❓ Ajuda"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

// Handler returns the bot's HTTP routes: /health, /notify and, when a
// webhook is configured, /bot.
func (b *Bot) Handler(updates chan<- tgbotapi.Update) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/notify", NewNotifyHandler(b, b.formatter, b.cfg))

	if updates != nil {
		mux.HandleFunc("/bot", func(w http.ResponseWriter, r *http.Request) {
			update, err := b.api.HandleUpdate(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			updates <- *update
		})
	}

	return mux
}

// Start serves HTTP and processes updates one at a time until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	var webhook chan tgbotapi.Update

	if b.cfg.WebhookURL != "" {
		if err := b.SetupWebhook(); err != nil {
			return err
		}
		webhook = make(chan tgbotapi.Update, b.api.Buffer)
		updates = webhook
	} else {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Printf("Failed to delete webhook: %v", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		defer b.api.StopReceivingUpdates()
	}

	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Handler(webhook),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on :%s", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// SendToGroup resolves group by name and posts text to it.
// The Telegram client takes no context, so when ctx expires the request
// keeps running in the background and may still be delivered after an
// error has been returned.
func (b *Bot) SendToGroup(ctx context.Context, group, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := b.resolveGroup(ctx, group)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- b.SendMessage(chatID, text) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send to %q: %w", group, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send to %q: %w", group, err)
		}
		return nil
	}
}

func (b *Bot) resolveGroup(ctx context.Context, group string) (int64, error) {
	if b.cfg.GroupChatID != 0 {
		return b.cfg.GroupChatID, nil
	}

	chat, err := b.storage.FindGroupByTitle(ctx, group)
	if err != nil {
		return 0, fmt.Errorf("find group: %w", err)
	}
	if chat == nil {
		return 0, fmt.Errorf("%w: %q", ErrRecipientNotFound, group)
	}
	return chat.ChatID, nil
}

// rememberChat records a chat so groups can later be found by title.
func (b *Bot) rememberChat(ctx context.Context, chat *tgbotapi.Chat) {
	if chat == nil {
		return
	}
	c := &domain.Chat{
		ChatID: chat.ID,
		Title:  chat.Title,
		Type:   chat.Type,
	}
	if err := b.storage.UpsertChat(ctx, c); err != nil {
		log.Printf("Error saving chat %d: %v", chat.ID, err)
	}
}
