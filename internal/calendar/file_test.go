package calendar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/deadlinebot/internal/domain"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250312T130000Z\r\n" +
	"DTEND:20250312T150000Z\r\n" +
	"SUMMARY:Seminário de Redes\r\n" +
	"CATEGORIES:Redes,Obrigatório\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250310T090000Z\r\n" +
	"SUMMARY:Prova 1\r\n" +
	"DESCRIPTION:Capítulos 1 a 3\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "data", "calendario.ics"), time.UTC)
}

func TestListEventsMissingFile(t *testing.T) {
	s := newTestStore(t)

	events, err := s.ListEvents(context.Background())

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, s.Exists())
}

func TestListEventsUnparsable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("not a calendar"), 0o644))

	_, err := s.ListEvents(context.Background())

	assert.Error(t, err)
}

func TestReplaceAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Replace(ctx, strings.NewReader(sampleICS))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "a@test", first.UID)
	assert.Equal(t, "Prova 1", first.Title)
	assert.Equal(t, "Capítulos 1 a 3", first.Description)
	assert.True(t, first.Start.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	assert.True(t, first.End.Equal(first.Start), "missing DTEND falls back to start")

	second := events[1]
	assert.Equal(t, "Redes", second.Category)
	assert.True(t, second.End.Equal(time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)))
}

func TestReplaceRejectsGarbage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Replace(context.Background(), strings.NewReader("garbage"))

	assert.Error(t, err)
	assert.False(t, s.Exists())
}

func TestAddEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)

	err := s.AddEvent(ctx, domain.Event{
		UID:         "manual-1@deadlinebot",
		Title:       "Entrega do relatório",
		Description: "PDF, máx. 10 páginas",
		Start:       start,
		Category:    "Engenharia, turma B",
	})
	require.NoError(t, err)
	require.True(t, s.Exists())

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "manual-1@deadlinebot", got.UID)
	assert.Equal(t, "Entrega do relatório", got.Title)
	assert.Equal(t, "PDF, máx. 10 páginas", got.Description)
	assert.Equal(t, "Engenharia, turma B", got.Category)
	assert.True(t, got.Start.Equal(start))
}

func TestAddEventKeepsExistingEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Replace(ctx, strings.NewReader(sampleICS))
	require.NoError(t, err)

	require.NoError(t, s.AddEvent(ctx, domain.Event{
		UID:   "c@test",
		Title: "Trabalho final",
		Start: time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
	}))

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestAddEventRequiresUID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.AddEvent(context.Background(), domain.Event{Title: "x", Start: time.Now()}))
}

func TestDeleteEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.True(t, errors.Is(s.DeleteEvent(ctx, "a@test"), ErrEventNotFound))

	_, err := s.Replace(ctx, strings.NewReader(sampleICS))
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(ctx, "a@test"))
	assert.ErrorIs(t, s.DeleteEvent(ctx, "a@test"), ErrEventNotFound)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b@test", events[0].UID)
}

func TestFirstListValue(t *testing.T) {
	assert.Equal(t, "Math", firstListValue("Math"))
	assert.Equal(t, "Math", firstListValue("Math,Physics"))
	assert.Equal(t, "A, B", firstListValue(`A\, B,C`))
	assert.Equal(t, "", firstListValue(""))
}

func TestDeleteLastEventLeavesEmptyCalendar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddEvent(ctx, domain.Event{
		UID:   "only@test",
		Title: "Prova única",
		Start: time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, s.DeleteEvent(ctx, "only@test"))

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, s.Exists())

	require.NoError(t, s.AddEvent(ctx, domain.Event{
		UID:   "next@test",
		Title: "Trabalho",
		Start: time.Date(2025, 3, 21, 12, 0, 0, 0, time.UTC),
	}))
	events, err = s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "next@test", events[0].UID)
}

const noUIDICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20300101T100000Z\r\n" +
	"SUMMARY:Prova\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:keep@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20300102T100000Z\r\n" +
	"SUMMARY:Seminário\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestEventsWithoutUID(t *testing.T) {
	ctx := context.Background()
	const fallback = "2030-01-01T10:00:00Z-Prova"

	t.Run("listed with fallback uid", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Replace(ctx, strings.NewReader(noUIDICS))
		require.NoError(t, err)

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, fallback, events[0].UID)
	})

	t.Run("add keeps the fallback uid", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Replace(ctx, strings.NewReader(noUIDICS))
		require.NoError(t, err)

		require.NoError(t, s.AddEvent(ctx, domain.Event{
			UID:   "new@test",
			Title: "Entrega",
			Start: time.Date(2030, 1, 3, 10, 0, 0, 0, time.UTC),
		}))

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, fallback, events[0].UID)
		assert.Equal(t, "new@test", events[2].UID)
	})

	t.Run("delete by fallback uid", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Replace(ctx, strings.NewReader(noUIDICS))
		require.NoError(t, err)

		require.NoError(t, s.DeleteEvent(ctx, fallback))

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "keep@test", events[0].UID)
	})

	t.Run("delete other event", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Replace(ctx, strings.NewReader(noUIDICS))
		require.NoError(t, err)

		require.NoError(t, s.DeleteEvent(ctx, "keep@test"))

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, fallback, events[0].UID)
	})
}
