package domain

import (
	"time"
)

// Event is a single calendar entry as seen by the reminder scheduler.
type Event struct {
	UID         string // iCalendar UID, stable across reloads
	Title       string // SUMMARY
	Description string
	Start       time.Time
	End         time.Time
	Category    string // first CATEGORIES value
}

// Key returns the dedup key for this event occurrence.
func (e Event) Key() NotificationKey {
	return NotificationKey{UID: e.UID, StartUnix: e.Start.Unix()}
}

// Until returns the time left before the event starts.
func (e Event) Until(now time.Time) time.Duration {
	return e.Start.Sub(now)
}

// FormatDateTime returns date and time in the given location
func (e Event) FormatDateTime(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return e.Start.In(loc).Format("02/01/2006 15:04")
}

// IsOnDay reports whether the event starts on the same calendar day as day in loc.
func (e Event) IsOnDay(day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	s := e.Start.In(loc)
	d := day.In(loc)
	return s.Year() == d.Year() && s.YearDay() == d.YearDay()
}

// NotificationKey identifies one notification occasion. A rescheduled
// event keeps its UID but gets a new key.
type NotificationKey struct {
	UID       string
	StartUnix int64
}

// ManualNotification is the payload the web front end posts to the bot
// when a reminder is created by hand.
type ManualNotification struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"` // ISO-8601
	Category    string `json:"category"`
}
