package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/domain"
	"github.com/tazhate/deadlinebot/internal/storage"
)

const uploadField = "calendar"

// Notifier tells the bot about a reminder created by hand.
type Notifier interface {
	Notify(ctx context.Context, n domain.ManualNotification) error
}

type Server struct {
	cfg      *config.Config
	calendar *calendar.FileStore
	storage  *storage.Storage
	notifier Notifier
}

type eventResponse struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Categories  string    `json:"categories"`
}

type subjectResponse struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type reminderRequest struct {
	Summary     string `json:"summary" form:"summary"`
	Description string `json:"description" form:"description"`
	Date        string `json:"date" form:"date"` // YYYY-MM-DD
	Time        string `json:"time" form:"time"` // HH:MM
	Category    string `json:"category" form:"category"`
}

type subjectRequest struct {
	Code string `json:"code" form:"code"`
	Name string `json:"name" form:"name"`
}

// NewRouter wires the front end routes.
// Public: /health
// Basic Auth when API_USERNAME is set: everything else, including static files.
func NewRouter(cfg *config.Config, cal *calendar.FileStore, store *storage.Storage, notifier Notifier) *gin.Engine {
	s := &Server{cfg: cfg, calendar: cal, storage: store, notifier: notifier}

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := s.authMiddleware()
	api := r.Group("/", auth)

	api.GET("/events", s.listEvents)
	api.POST("/upload", s.uploadCalendar)
	api.POST("/reminder", s.createReminder)
	api.DELETE("/event/:uid", s.deleteEvent)
	api.GET("/status", s.status)

	api.GET("/subjects", s.listSubjects)
	api.POST("/subject", s.createSubject)
	api.PUT("/subject/:code", s.updateSubject)
	api.DELETE("/subject/:code", s.deleteSubject)

	files := http.FileServer(gin.Dir(cfg.PublicDir, false))
	r.NoRoute(auth, gin.WrapH(files))

	return r
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	if s.cfg.APIUsername == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{s.cfg.APIUsername: s.cfg.APIPassword}, "deadlinebot")
}

func (s *Server) listEvents(c *gin.Context) {
	events, err := s.calendar.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, eventResponse{
			UID:         e.UID,
			Summary:     e.Title,
			Description: e.Description,
			StartDate:   e.Start,
			EndDate:     e.End,
			Categories:  e.Category,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": resp})
}

func (s *Server) uploadCalendar(c *gin.Context) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nenhum arquivo enviado"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	n, err := s.calendar.Replace(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Arquivo de calendário inválido: " + err.Error()})
		return
	}

	log.Printf("Calendar replaced from upload %q (%d events)", fh.Filename, n)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Calendário atualizado com sucesso!", "events": n})
}

func (s *Server) createReminder(c *gin.Context) {
	var req reminderRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requisição inválida"})
		return
	}

	req.Summary = strings.TrimSpace(req.Summary)
	if req.Summary == "" || req.Date == "" || req.Time == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campos obrigatórios: summary, date, time"})
		return
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, s.cfg.Timezone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Data ou hora inválida"})
		return
	}

	event := domain.Event{
		UID:         "manual-" + uuid.New().String() + "@deadlinebot",
		Title:       req.Summary,
		Description: req.Description,
		Start:       start,
		End:         start,
		Category:    strings.TrimSpace(req.Category),
	}

	if err := s.calendar.AddEvent(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.notifyAsync(domain.ManualNotification{
		Summary:     event.Title,
		Description: event.Description,
		StartDate:   start.Format(time.RFC3339),
		Category:    event.Category,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lembrete criado e enviado para o grupo!", "uid": event.UID})
}

// notifyAsync posts to the bot without holding up the HTTP response.
func (s *Server) notifyAsync(n domain.ManualNotification) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx := context.Background()
		if s.cfg.DeliveryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
			defer cancel()
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			log.Printf("Error notifying bot about %q: %v", n.Summary, err)
			return
		}
		log.Printf("Bot notified: %s", n.Summary)
	}()
}

func (s *Server) deleteEvent(c *gin.Context) {
	err := s.calendar.DeleteEvent(c.Request.Context(), c.Param("uid"))
	if errors.Is(err, calendar.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Evento não encontrado"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Evento deletado"})
}

func (s *Server) status(c *gin.Context) {
	events, err := s.calendar.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalEvents":    len(events),
		"calendarExists": s.calendar.Exists(),
	})
}

func (s *Server) listSubjects(c *gin.Context) {
	subjects, err := s.storage.ListSubjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]subjectResponse, 0, len(subjects))
	for _, sub := range subjects {
		resp = append(resp, subjectResponse{Code: sub.Code, Name: sub.Name, CreatedAt: sub.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"subjects": resp})
}

func (s *Server) createSubject(c *gin.Context) {
	var req subjectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requisição inválida"})
		return
	}

	code, name := strings.TrimSpace(req.Code), strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código e nome são obrigatórios"})
		return
	}

	err := s.storage.CreateSubject(c.Request.Context(), &domain.Subject{Code: code, Name: name})
	if errors.Is(err, storage.ErrSubjectExists) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Disciplina já existe"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Disciplina adicionada!"})
}

func (s *Server) updateSubject(c *gin.Context) {
	var req subjectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requisição inválida"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nome é obrigatório"})
		return
	}

	ok, err := s.storage.UpdateSubjectName(c.Request.Context(), c.Param("code"), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Disciplina não encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Disciplina atualizada!"})
}

func (s *Server) deleteSubject(c *gin.Context) {
	ok, err := s.storage.DeleteSubject(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Disciplina não encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Disciplina deletada!"})
}
