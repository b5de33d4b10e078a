package domain

import "time"

// Subject is a course tracked alongside the calendar.
type Subject struct {
	Code      string
	Name      string
	CreatedAt time.Time
}
