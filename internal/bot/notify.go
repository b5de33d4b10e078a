package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/domain"
	"github.com/tazhate/deadlinebot/internal/scheduler"
	"github.com/tazhate/deadlinebot/internal/service"
)

const maxNotifyBody = 64 << 10

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NotifyHandler serves POST /notify: it announces a manually created
// reminder right away, bypassing the lookahead window and the dedup cache.
type NotifyHandler struct {
	sender    scheduler.GroupSender
	formatter *service.MessageFormatter
	cfg       *config.Config
}

func NewNotifyHandler(sender scheduler.GroupSender, formatter *service.MessageFormatter, cfg *config.Config) *NotifyHandler {
	return &NotifyHandler{sender: sender, formatter: formatter, cfg: cfg}
}

func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.cfg.NotifyToken != "" {
		token := r.Header.Get("X-Notify-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.NotifyToken)) != 1 {
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var n domain.ManualNotification
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotifyBody)).Decode(&n); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := eventFromNotification(n, h.cfg.Timezone)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.DeliveryTimeout)
		defer cancel()
	}

	text := h.formatter.FormatImmediate(event)
	if err := h.sender.SendToGroup(ctx, h.cfg.GroupName, text); err != nil {
		log.Printf("Error sending manual reminder %q: %v", event.Title, err)
		jsonError(w, "delivery failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	log.Printf("Manual reminder sent: %s", event.Title)
	jsonResponse(w, map[string]string{"message": "notification sent"})
}

// isoLocalLayouts are ISO-8601 forms without an offset, read in the
// configured timezone.
var isoLocalLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func eventFromNotification(n domain.ManualNotification, loc *time.Location) (domain.Event, error) {
	summary := strings.TrimSpace(n.Summary)
	if summary == "" {
		return domain.Event{}, errors.New("summary is required")
	}
	if strings.TrimSpace(n.StartDate) == "" {
		return domain.Event{}, errors.New("startDate is required")
	}

	start, err := parseStartDate(strings.TrimSpace(n.StartDate), loc)
	if err != nil {
		return domain.Event{}, fmt.Errorf("startDate must be ISO-8601: %w", err)
	}

	return domain.Event{
		Title:       summary,
		Description: n.Description,
		Start:       start,
		End:         start,
		Category:    strings.TrimSpace(n.Category),
	}, nil
}

func parseStartDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range isoLocalLayouts {
		if t, lerr := time.ParseInLocation(layout, value, loc); lerr == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}
