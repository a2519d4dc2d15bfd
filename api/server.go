package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"folio/config"
	"folio/ingest"
	"folio/library"
	"folio/pkg/metrics"
	"folio/repository"
)

// Server serves the library REST API.
type Server struct {
	cfg    config.ServerConfig
	lib    *library.Library
	ingest *ingest.Service
	store  repository.Store
	logger *zap.Logger
}

func NewServer(cfg config.ServerConfig, lib *library.Library, ing *ingest.Service, store repository.Store, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		lib:    lib,
		ingest: ing,
		store:  store,
		logger: logger,
	}
}

// Handler returns the routed API wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Import
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/save-website", s.handleSaveWebsite)
	mux.HandleFunc("POST /api/crawl-website", s.handleCrawlWebsite)

	// Books
	mux.HandleFunc("GET /api/books", s.handleListBooks)
	mux.HandleFunc("GET /api/books/{id}", s.handleGetBook)
	mux.HandleFunc("PATCH /api/books/{id}", s.handleUpdateBook)
	mux.HandleFunc("DELETE /api/books/{id}", s.handleDeleteBook)

	// Pages
	mux.HandleFunc("GET /api/books/{id}/pages/{n}", s.handleGetPage)
	mux.HandleFunc("PUT /api/books/{id}/pages/{n}", s.handleSavePage(library.KindEdit))
	mux.HandleFunc("PUT /api/books/{id}/pages/{n}/translation", s.handleSavePage(library.KindTranslation))
	mux.HandleFunc("POST /api/books/{id}/pages/{n}/restore", s.handleRestorePage)
	mux.HandleFunc("GET /api/books/{id}/pages/{n}/backup", s.handleHasBackup)
	mux.HandleFunc("POST /api/books/{id}/restore-all", s.handleRestoreAll)
	mux.HandleFunc("GET /api/books/{id}/all-pages", s.handleAllPages)
	mux.HandleFunc("GET /api/books/{id}/toc", s.handleTOC)
	mux.HandleFunc("GET /api/books/{id}/search", s.handleSearch)
	mux.HandleFunc("GET /api/books/{id}/export.md", s.handleExport)
	mux.HandleFunc("GET /api/books/{id}/media/{file...}", s.handleMedia)
	mux.HandleFunc("GET /api/books/{id}/pdf", s.handlePDF)

	// Annotations
	mux.HandleFunc("GET /api/books/{id}/bookmarks", s.handleListBookmarks)
	mux.HandleFunc("POST /api/books/{id}/bookmarks", s.handleCreateBookmark)
	mux.HandleFunc("DELETE /api/bookmarks/{id}", s.handleDeleteBookmark)
	mux.HandleFunc("GET /api/books/{id}/clips", s.handleListClips)
	mux.HandleFunc("POST /api/books/{id}/clips", s.handleCreateClip)
	mux.HandleFunc("GET /api/clips/{id}/image", s.handleClipImage)
	mux.HandleFunc("PATCH /api/clips/{id}", s.handleUpdateClip)
	mux.HandleFunc("DELETE /api/clips/{id}", s.handleDeleteClip)
	mux.HandleFunc("GET /api/books/{id}/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/books/{id}/notes", s.handleCreateNote)
	mux.HandleFunc("PUT /api/notes/{id}", s.handleUpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)

	// Tags
	mux.HandleFunc("GET /api/tags", s.handleListTags)
	mux.HandleFunc("POST /api/tags", s.handleCreateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", s.handleDeleteTag)
	mux.HandleFunc("PUT /api/books/{id}/tags/{tagId}", s.handleTagBook)
	mux.HandleFunc("DELETE /api/books/{id}/tags/{tagId}", s.handleUntagBook)

	// Progress and settings
	mux.HandleFunc("GET /api/books/{id}/progress", s.handleGetProgress)
	mux.HandleFunc("PUT /api/books/{id}/progress", s.handleSetProgress)
	mux.HandleFunc("GET /api/settings/ai", s.handleGetAISettings)
	mux.HandleFunc("PUT /api/settings/ai", s.handleSaveAISettings)

	mux.HandleFunc("GET /static/highlight.css", s.handleHighlightCSS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRequestContext(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	r.status = code
	r.wrote = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestContext tags every request with a context id, records metrics
// and turns panics into a 500 envelope.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = GenerateContextID("req")
		}
		ctx := WithContextID(r.Context(), id)
		ctx = WithIP(ctx, clientIP(r))
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				GetContextLogger(ctx, s.logger).Error("panic in handler",
					zap.Any("panic", p), zap.String("path", r.URL.Path))
				// A partly written response cannot carry the envelope.
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, "internal", "internal server error", nil)
				}
			}

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
			GetContextLogger(ctx, s.logger).Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
