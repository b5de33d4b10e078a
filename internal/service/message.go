package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tazhate/deadlinebot/internal/domain"
)

const maxDescriptionLen = 300

type classifyRule struct {
	stems []string
	typ   domain.ActivityType
}

// Evaluated top to bottom, first match wins.
var classifyRules = []classifyRule{
	{stems: []string{"avalia", "prova", "exam", "assess"}, typ: domain.ActivityExam},
	{stems: []string{"semin"}, typ: domain.ActivitySeminar},
	{stems: []string{"entrega", "submiss", "deliver"}, typ: domain.ActivitySubmission},
	{stems: []string{"trabalho", "assignment", "homework"}, typ: domain.ActivityAssignment},
}

// Classify maps an event title to its activity type by keyword.
func Classify(title string) domain.ActivityType {
	t := strings.ToLower(title)
	for _, rule := range classifyRules {
		for _, stem := range rule.stems {
			if strings.Contains(t, stem) {
				return rule.typ
			}
		}
	}
	return domain.ActivityGeneric
}

// MessageFormatter renders events as Telegram HTML.
type MessageFormatter struct {
	loc *time.Location
}

func NewMessageFormatter(loc *time.Location) *MessageFormatter {
	if loc == nil {
		loc = time.Local
	}
	return &MessageFormatter{loc: loc}
}

func (f *MessageFormatter) Location() *time.Location {
	return f.loc
}

// FormatUpcoming renders a lookahead reminder for an event starting in remaining.
func (f *MessageFormatter) FormatUpcoming(e domain.Event, remaining time.Duration) string {
	var sb strings.Builder
	sb.WriteString("⚠️ <b>LEMBRETE</b> ⚠️\n\n")
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", Classify(e.Title).Label()))
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(e.Title)))
	sb.WriteString(fmt.Sprintf("📅 %s\n", e.FormatDateTime(f.loc)))
	sb.WriteString(fmt.Sprintf("⏰ Prazo: %s\n", FormatRemaining(remaining)))
	if e.Description != "" {
		sb.WriteString("\n" + html.EscapeString(truncate(e.Description, maxDescriptionLen)))
	}
	return sb.String()
}

// FormatImmediate renders a manually created event that is sent right away.
func (f *MessageFormatter) FormatImmediate(e domain.Event) string {
	var sb strings.Builder
	sb.WriteString("🆕 <b>NOVO LEMBRETE</b>\n\n")
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", Classify(e.Title).Label()))
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(e.Title)))
	sb.WriteString(fmt.Sprintf("📅 %s\n", e.FormatDateTime(f.loc)))
	if e.Category != "" {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", html.EscapeString(e.Category)))
	}
	if e.Description != "" {
		sb.WriteString("\n" + html.EscapeString(e.Description))
	}
	return sb.String()
}

// FormatEventList formats events for display, one line each, grouped by day.
func (f *MessageFormatter) FormatEventList(events []domain.Event) string {
	if len(events) == 0 {
		return "Nenhum evento"
	}

	var sb strings.Builder
	var currentDate string

	for _, e := range events {
		start := e.Start.In(f.loc)
		eventDate := start.Format("02/01")

		if eventDate != currentDate {
			if currentDate != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("📅 <b>%s, %s</b>\n", eventDate, portugueseWeekday(start.Weekday())))
			currentDate = eventDate
		}

		line := fmt.Sprintf("  %s — %s", start.Format("15:04"), html.EscapeString(e.Title))
		if e.Category != "" {
			line += fmt.Sprintf(" [%s]", html.EscapeString(e.Category))
		}
		sb.WriteString(line + "\n")
	}

	return sb.String()
}

// FormatRemaining renders whole hours when at least one hour is left,
// whole minutes otherwise.
func FormatRemaining(d time.Duration) string {
	if hours := int(d / time.Hour); hours > 0 {
		return fmt.Sprintf("%d hora(s)", hours)
	}
	return fmt.Sprintf("%d minuto(s)", int(d/time.Minute))
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

func portugueseWeekday(wd time.Weekday) string {
	days := []string{"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"}
	return days[wd]
}
