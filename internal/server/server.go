// Package server exposes the tool catalog over HTTP so other programs, such
// as a model host, can drive the tables.
//
// Every tool is reachable at POST /tools/{name} with its arguments as the
// JSON body. Callers share one session, and with it one active table.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"golang.org/x/sync/errgroup"
)

// maxBodyBytes caps tool call request bodies.
const maxBodyBytes = 1 << 20

// Server serves the tool API.
type Server struct {
	dispatcher *tools.Dispatcher
	addr       string
	dbPath     string
	watch      bool
	logger     *slog.Logger
	notifier   *Notifier

	// lastChange is when this server last applied a change (unix nanos).
	lastChange atomic.Int64
}

// Config holds configuration for the server.
type Config struct {
	Dispatcher *tools.Dispatcher
	Addr       string
	Logger     *slog.Logger

	// Watch enables change events for writes made by other processes to
	// DatabasePath.
	Watch        bool
	DatabasePath string
}

// New creates a new server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		dispatcher: cfg.Dispatcher,
		addr:       cfg.Addr,
		dbPath:     cfg.DatabasePath,
		watch:      cfg.Watch,
		logger:     logger,
		notifier:   NewNotifier(),
	}
}

// Notifier returns the server's change notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tools", s.handleListTools)
	r.Post("/tools/{name}", s.handleCallTool)
	r.Get("/tables", s.handleListTables)
	r.Get("/tables/{table}", s.handleReadTable)
	r.Get("/events", s.handleEvents)

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting tool server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if s.watch && s.dbPath != "" && s.dbPath != ":memory:" {
		eg.Go(func() error {
			return s.watchDatabase(egctx)
		})
	}

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down tool server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
