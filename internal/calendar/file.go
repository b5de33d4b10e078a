package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/tazhate/deadlinebot/internal/domain"
)

const productID = "-//deadlinebot//Manual Event//PT"

var ErrEventNotFound = errors.New("event not found")

// FileStore reads and writes events in a single iCalendar file.
type FileStore struct {
	path string
	loc  *time.Location // used for floating and date-only times
	mu   sync.Mutex
}

func NewFileStore(path string, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	return &FileStore{path: path, loc: loc}
}

func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the calendar file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// ListEvents returns all events sorted by start. A missing file is an
// empty calendar; an unreadable or unparsable one is an error.
func (s *FileStore) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.read()
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, nil
	}
	return eventsFromCalendar(cal, s.loc), nil
}

// AddEvent appends an event, creating the file if needed.
func (s *FileStore) AddEvent(_ context.Context, e domain.Event) error {
	if e.UID == "" {
		return fmt.Errorf("event uid is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.read()
	if err != nil {
		return err
	}
	if cal == nil {
		cal = newCalendar()
	}

	cal.Children = append(cal.Children, eventToComponent(e))
	return s.write(cal)
}

// DeleteEvent removes every VEVENT carrying uid.
func (s *FileStore) DeleteEvent(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.read()
	if err != nil {
		return err
	}
	if cal == nil {
		return ErrEventNotFound
	}

	kept := cal.Children[:0]
	found := false
	for _, comp := range cal.Children {
		if comp.Name == ical.CompEvent && s.eventUID(comp) == uid {
			found = true
			continue
		}
		kept = append(kept, comp)
	}
	if !found {
		return ErrEventNotFound
	}
	cal.Children = kept

	return s.write(cal)
}

// Replace validates r as an iCalendar stream and swaps it in as the
// calendar file. It returns the number of events in the new file.
func (s *FileStore) Replace(_ context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read calendar: %w", err)
	}

	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return 0, fmt.Errorf("parse calendar: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		return 0, err
	}
	return len(cal.Events()), nil
}

func (s *FileStore) read() (*ical.Calendar, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	cal, err := ical.NewDecoder(f).Decode()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", s.path, err)
	}
	return cal, nil
}

func (s *FileStore) write(cal *ical.Calendar) error {
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, productID)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	// Files authored elsewhere may lack DTSTAMP or UID, which the encoder
	// requires. A missing UID is stored as the one ListEvents reports.
	now := time.Now().UTC()
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if comp.Props.Get(ical.PropDateTimeStamp) == nil {
			comp.Props.SetDateTime(ical.PropDateTimeStamp, now)
		}
		if comp.Props.Get(ical.PropUID) == nil {
			comp.Props.SetText(ical.PropUID, s.eventUID(comp))
		}
	}

	if len(cal.Children) == 0 {
		return writeAtomic(s.path, emptyCalendar())
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return writeAtomic(s.path, buf.Bytes())
}

// eventUID returns the UID ListEvents reports for comp, including the
// fallback for VEVENTs without one.
func (s *FileStore) eventUID(comp *ical.Component) string {
	if uid := propText(comp, ical.PropUID); uid != "" {
		return uid
	}
	if e, err := EventFromComponent(comp, s.loc); err == nil {
		return e.UID
	}
	// Never listed, so the id only has to satisfy the encoder.
	return "unparsed-" + uuid.NewString()
}

// emptyCalendar renders a VCALENDAR with no components. The encoder
// refuses those, but readers accept them.
func emptyCalendar() []byte {
	return []byte("BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:" + productID + "\r\n" +
		"END:VCALENDAR\r\n")
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// writeAtomic writes data to a temp file next to path and renames it over.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calendar dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calendar-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write calendar: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// eventsFromCalendar converts every VEVENT; broken ones are logged and skipped.
func eventsFromCalendar(cal *ical.Calendar, loc *time.Location) []domain.Event {
	events := make([]domain.Event, 0, len(cal.Children))
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		e, err := EventFromComponent(comp, loc)
		if err != nil {
			log.Printf("Skipping calendar event %q: %v", propText(comp, ical.PropSummary), err)
			continue
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// EventFromComponent maps a VEVENT to a domain event.
func EventFromComponent(comp *ical.Component, loc *time.Location) (domain.Event, error) {
	ev := ical.Event{Component: comp}

	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parse DTSTART: %w", err)
	}
	if start.IsZero() {
		return domain.Event{}, fmt.Errorf("missing DTSTART")
	}

	end, err := ev.DateTimeEnd(loc)
	if err != nil || end.IsZero() {
		end = start
	}

	e := domain.Event{
		UID:         propText(comp, ical.PropUID),
		Title:       propText(comp, ical.PropSummary),
		Description: propText(comp, ical.PropDescription),
		Start:       start,
		End:         end,
	}
	if prop := comp.Props.Get(ical.PropCategories); prop != nil {
		e.Category = firstListValue(prop.Value)
	}
	if e.UID == "" {
		e.UID = start.UTC().Format(time.RFC3339) + "-" + e.Title
	}
	return e, nil
}

func eventToComponent(e domain.Event) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, e.UID)
	vevent.Props.SetText(ical.PropSummary, e.Title)
	if e.Description != "" {
		vevent.Props.SetText(ical.PropDescription, e.Description)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
	end := e.End
	if end.IsZero() {
		end = e.Start
	}
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	if e.Category != "" {
		vevent.Props.SetText(ical.PropCategories, e.Category)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	return vevent.Component
}

func propText(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	if s, err := prop.Text(); err == nil {
		return s
	}
	return prop.Value
}

// firstListValue returns the first item of a comma separated TEXT list,
// honouring backslash escapes.
func firstListValue(raw string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			switch r {
			case 'n', 'N':
				sb.WriteRune('\n')
			default:
				sb.WriteRune(r)
			}
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			return strings.TrimSpace(sb.String())
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
