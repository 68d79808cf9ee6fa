// Package web serves the tag extractor UI and its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tagscan/internal/logger"
	"tagscan/internal/scan"
)

//go:embed templates/*.html
var templateFS embed.FS

// Exporter sends a scan report somewhere durable.
type Exporter interface {
	ExportReport(ctx context.Context, report scan.Report) error
}

// Options configures a Server.
type Options struct {
	Scanner *scan.Scanner

	// Exporter is optional; export is disabled when nil.
	Exporter Exporter

	MaxUploadBytes int64
	SessionTTL     time.Duration

	// ExportTimeout bounds one export. Defaults to 30s.
	ExportTimeout time.Duration
}

// Server holds the HTTP handlers and per-browser sessions.
type Server struct {
	scanner   *scan.Scanner
	exporter  Exporter
	maxUpload int64
	exportTTL time.Duration
	sessions  *sessionStore
	tmpl      *template.Template
	log       zerolog.Logger
}

// NewServer parses the embedded templates and builds the server.
func NewServer(opts Options) (*Server, error) {
	if opts.Scanner == nil {
		return nil, errors.New("web: scanner is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.ExportTimeout <= 0 {
		opts.ExportTimeout = 30 * time.Second
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		scanner:   opts.Scanner,
		exporter:  opts.Exporter,
		maxUpload: opts.MaxUploadBytes,
		exportTTL: opts.ExportTimeout,
		sessions:  newSessionStore(opts.SessionTTL),
		tmpl:      tmpl,
		log:       logger.WithComponent("web"),
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/page", s.handlePage)
	r.Post("/scan", s.handleScan)
	r.Post("/export", s.handleExport)
	r.Get("/pages/{n}.png", s.handlePageImage)
	r.Get("/annotated.png", s.handleAnnotated)

	r.Post("/api/scan", s.handleAPIScan)
	r.Get("/healthz", s.handleHealth)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().
			Str("addr", addr).
			Str("profile", s.scanner.Profile().Name).
			Str("engine", s.scanner.Engine()).
			Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logger.WithRequestID(middleware.GetReqID(r.Context()))
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
