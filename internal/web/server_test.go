package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/domain"
	"github.com/tazhate/deadlinebot/internal/storage"
)

const uploadICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:up-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250320T130000Z\r\n" +
	"SUMMARY:Prova 2\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type chanNotifier struct {
	got chan domain.ManualNotification
}

func (n *chanNotifier) Notify(ctx context.Context, m domain.ManualNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.got <- m
	return nil
}

type testEnv struct {
	router   *gin.Engine
	cal      *calendar.FileStore
	store    *storage.Storage
	notifier *chanNotifier
	cfg      *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	publicDir := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(publicDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<h1>painel</h1>"), 0o644))

	cfg := &config.Config{
		Timezone:        time.UTC,
		DeliveryTimeout: time.Second,
		PublicDir:       publicDir,
	}
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.New(filepath.Join(dir, "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cal := calendar.NewFileStore(filepath.Join(dir, "calendario.ics"), time.UTC)
	notifier := &chanNotifier{got: make(chan domain.ManualNotification, 4)}

	return &testEnv{
		router:   NewRouter(cfg, cal, store, notifier),
		cal:      cal,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEventsEmptyCalendar(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalEvents":0,"calendarExists":false}`, rec.Body.String())
}

func TestCreateReminder(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/reminder",
		`{"summary":"Entrega do projeto","description":"PDF","date":"2025-03-21","time":"18:30","category":"Redes"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uid, _ := decode(t, rec)["uid"].(string)
	assert.True(t, strings.HasPrefix(uid, "manual-"))
	assert.True(t, strings.HasSuffix(uid, "@deadlinebot"))

	events, err := env.cal.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uid, events[0].UID)
	assert.Equal(t, "Redes", events[0].Category)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 3, 21, 18, 30, 0, 0, time.UTC)))

	select {
	case n := <-env.notifier.got:
		assert.Equal(t, "Entrega do projeto", n.Summary)
		assert.Equal(t, "2025-03-21T18:30:00Z", n.StartDate)
		assert.Equal(t, "Redes", n.Category)
	case <-time.After(2 * time.Second):
		t.Fatal("bot was not notified")
	}
}

func TestCreateReminderWithoutDeliveryTimeout(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.DeliveryTimeout = 0 })

	rec := env.do(http.MethodPost, "/reminder",
		`{"summary":"Prova","date":"2025-03-21","time":"10:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case n := <-env.notifier.got:
		assert.Equal(t, "Prova", n.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("bot was not notified")
	}
}

func TestCreateReminderValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{
		`{"summary":"","date":"2025-03-21","time":"18:30"}`,
		`{"summary":"Prova","time":"18:30"}`,
		`{"summary":"Prova","date":"21/03/2025","time":"18:30"}`,
		`{not json`,
	} {
		rec := env.do(http.MethodPost, "/reminder", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.False(t, env.cal.Exists())
	assert.Empty(t, env.notifier.got)
}

func TestDeleteEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	start := time.Date(2025, 3, 21, 10, 0, 0, 0, time.UTC)
	require.NoError(t, env.cal.AddEvent(ctx, domain.Event{UID: "x@test", Title: "Seminário", Start: start}))

	rec := env.do(http.MethodDelete, "/event/x@test", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/event/x@test", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadCalendar(t *testing.T) {
	env := newTestEnv(t, nil)

	upload := func(field, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(field, "cal.ics")
		require.NoError(t, err)
		fw.Write([]byte(content))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("other", uploadICS)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("calendar", "garbage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.cal.Exists())

	rec = upload("calendar", uploadICS)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["events"])

	rec = env.do(http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":"up-1"`)
	assert.Contains(t, rec.Body.String(), `"summary":"Prova 2"`)
}

func TestSubjectRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/subject", `{"code":"MAT101","name":"Cálculo I"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/subject", `{"code":"mat101","name":"Outra"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/subject", `{"code":"FIS"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/subject/MAT101", `{"name":"Cálculo 1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPut, "/subject/NOPE", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	subjects := decode(t, rec)["subjects"].([]any)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Cálculo 1", subjects[0].(map[string]any)["name"])

	rec = env.do(http.MethodDelete, "/subject/MAT101", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/subject/MAT101", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.APIUsername = "admin"
		c.APIPassword = "pw"
	})

	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/index.html", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.SetBasicAuth("admin", "pw")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "painel")
}
