// Package server exposes the assistant over HTTP: a server-rendered page and a
// JSON API sharing the same session cookie.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docqa-assistant/server/internal/assistant/model"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Config struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8501"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	SecureCookie    bool          `envconfig:"HTTP_SECURE_COOKIE" default:"false"`
}

// Assistant is the session controller as seen by the handlers.
type Assistant interface {
	Upload(ctx context.Context, sessionID, filename string, r io.Reader) (*model.Document, error)
	Ask(ctx context.Context, in model.AskInput) (*model.Turn, error)
	View(ctx context.Context, sessionID string) (*model.SessionView, error)
	ClearTranscript(ctx context.Context, sessionID string) error
	End(ctx context.Context, sessionID string) error
}

// Deps holds everything NewRouter wires into the handlers.
type Deps struct {
	Assistant Assistant
	HTTP      Config
	Session   model.SessionConfig
	Upload    model.UploadConfig
	// Model is shown on the page so users know which model must be pulled.
	Model string
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Assistant == nil {
		return nil, fmt.Errorf("assistant is nil")
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	cookieName := deps.Session.CookieName
	if cookieName == "" {
		cookieName = "docqa_session"
	}

	h := &handler{
		assistant:  deps.Assistant,
		maxUpload:  deps.Upload.MaxBytes(),
		model:      deps.Model,
		cookieName: cookieName,
		secure:     deps.HTTP.SecureCookie,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = 32 << 20

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	page := engine.Group("/", sessionCookie(cookieName, deps.HTTP.SecureCookie))
	{
		page.GET("/", h.ShowPage)
		page.POST("/upload", h.UploadPage)
		page.POST("/chat", h.AskPage)
		page.POST("/reset", h.ResetPage)
	}

	api := engine.Group("/api/v1", sessionCookie(cookieName, deps.HTTP.SecureCookie))
	{
		api.GET("/session", h.GetSession)
		api.DELETE("/session", h.EndSession)
		api.POST("/document", h.UploadDocument)
		api.POST("/messages", h.PostMessage)
		api.DELETE("/messages", h.ClearMessages)
	}

	return engine, nil
}

// Run serves handler on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logx.Info().Dur("timeout", timeout).Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
