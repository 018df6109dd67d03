package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"dental-intake-ocr/src/analysis"
	"dental-intake-ocr/src/intake"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	refreshSeconds  = 5
	shutdownTimeout = 5 * time.Second
)

// Controller is the part of the analysis loop the web UI drives.
type Controller interface {
	Toggle(ctx context.Context) (analysis.Snapshot, error)
	Snapshot(ctx context.Context) (analysis.Snapshot, error)
}

// Server renders the intake form and the analysis controls.
type Server struct {
	ctrl   Controller
	engine *gin.Engine
	now    func() time.Time
}

type pageData struct {
	Values         map[string]string
	Genders        []string
	MinAge         int
	MaxAge         int
	FormError      string
	Confirmation   []string
	Analysis       analysis.Snapshot
	RefreshSeconds int
}

// New builds the router. The caller picks gin's mode.
func New(ctrl Controller) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{ctrl: ctrl, now: time.Now}

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
	)
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleIndex)
	router.POST("/patient", s.handlePatient)
	router.GET("/patient", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/")
	})
	router.POST("/analysis/toggle", s.handleToggleForm)
	router.GET("/api/analysis", s.handleSnapshotJSON)
	router.POST("/api/analysis/toggle", s.handleToggleJSON)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine = router
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("web: shutdown: %v", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	data, err := s.page(c, nil)
	if err != nil {
		c.String(http.StatusServiceUnavailable, err.Error())
		return
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handlePatient(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "invalid form: %v", err)
		return
	}
	values := c.Request.PostForm

	data, err := s.page(c, values)
	if err != nil {
		c.String(http.StatusServiceUnavailable, err.Error())
		return
	}

	rec, err := intake.ParseAt(values, s.now())
	if err != nil {
		var fe *intake.FieldError
		if errors.As(err, &fe) {
			data.FormError = fe.Error()
			c.HTML(http.StatusBadRequest, "index.html", data)
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	data.Confirmation = rec.Confirmation()
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleToggleForm(c *gin.Context) {
	if _, err := s.ctrl.Toggle(c.Request.Context()); err != nil {
		c.String(http.StatusServiceUnavailable, err.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleSnapshotJSON(c *gin.Context) {
	snap, err := s.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleToggleJSON(c *gin.Context) {
	snap, err := s.ctrl.Toggle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) page(c *gin.Context, submitted url.Values) (pageData, error) {
	snap, err := s.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		return pageData{}, err
	}

	values := map[string]string{
		intake.FieldAge:             "0",
		intake.FieldGender:          intake.Genders[0],
		intake.FieldAppointmentDate: s.now().Format(intake.DateLayout),
	}
	for k := range submitted {
		values[k] = submitted.Get(k)
	}

	return pageData{
		Values:         values,
		Genders:        intake.Genders,
		MinAge:         intake.MinAge,
		MaxAge:         intake.MaxAge,
		Analysis:       snap,
		RefreshSeconds: refreshSeconds,
	}, nil
}
