package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tazhate/deadlinebot/internal/domain"
)

// BotNotifier posts manual reminders to the bot's /notify endpoint.
type BotNotifier struct {
	url    string
	token  string
	client *http.Client
}

func NewBotNotifier(url, token string) *BotNotifier {
	return &BotNotifier{url: url, token: token, client: &http.Client{}}
}

func (n *BotNotifier) Notify(ctx context.Context, m domain.ManualNotification) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("X-Notify-Token", n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bot returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
