// Package api exposes the engine over HTTP for administration and for hosts
// that run the engine out of process.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/sixmem/internal/engine"
	"github.com/rcliao/sixmem/internal/model"
)

// Options configures the HTTP server.
type Options struct {
	Addr        string
	CORSOrigins []string
	Logger      *slog.Logger
	// RequestTimeout bounds every /api/v1 request. Zero means 60s.
	RequestTimeout time.Duration
}

// Server serves the REST API for one engine.
type Server struct {
	engine    *engine.Engine
	router    *chi.Mux
	addr      string
	log       *slog.Logger
	sseServer *server.SSEServer
}

// NewServer builds the router. Call Serve to listen.
func NewServer(e *engine.Engine, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine: e,
		addr:   opts.Addr,
		log:    log,
	}
	s.setupRouter(opts)
	return s
}

func (s *Server) setupRouter(opts Options) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/stats", s.handleStats)
		r.Route("/users/{user}", func(r chi.Router) {
			r.Post("/context", s.handleBuildContext)
			r.Post("/episodes/record", s.handleRecordEpisode)
			r.Get("/stats", s.handleStats)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)

			r.Get("/{dimension}", s.handleList)
			r.Post("/{dimension}", s.handleCreate)
			r.Get("/{dimension}/search", s.handleSearch)
			r.Get("/{dimension}/{id}", s.handleGet)
			r.Patch("/{dimension}/{id}", s.handleUpdate)
			r.Delete("/{dimension}/{id}", s.handleDelete)
		})
	})

	s.router = r
}

// Handler returns the root handler, for tests and embedding in other muxes.
func (s *Server) Handler() http.Handler { return s.router }

// AddMCPServer mounts the MCP server over SSE at /mcp. The SSE routes sit
// outside /api/v1 so the request timeout does not cut streams.
func (s *Server) AddMCPServer(mcpServer *server.MCPServer) {
	s.sseServer = server.NewSSEServer(
		mcpServer,
		server.WithBasePath("/mcp"),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(15*time.Second),
	)
	s.router.Mount("/mcp", s.sseServer)
	s.log.Info("mcp sse endpoint mounted", "sse", "/mcp/sse", "message", "/mcp/message")
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http server listening", "addr", s.addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.sseServer != nil {
		if err := s.sseServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("mcp sse shutdown", "err", err)
		}
	}
	s.log.Info("http server stopping")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]string{"status": "healthy"})
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.engine.Stats(ctx, ""); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	successResponse(w, map[string]string{"status": "ready"})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// errorResponse writes a JSON error response.
func errorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// successResponse writes a 200 JSON response.
func successResponse(w http.ResponseWriter, data any) {
	jsonResponse(w, http.StatusOK, data)
}

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// fail maps engine errors onto status codes: validation is the caller's
// fault, missing records are 404, everything else is ours.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err)
	}
	errorResponse(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
