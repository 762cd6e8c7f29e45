// Package ui serves stored lineage graphs over HTTP and triggers new scans.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/leapstack-labs/mclineage/internal/ui/features/scan"
	"github.com/leapstack-labs/mclineage/internal/ui/notifier"
	"github.com/leapstack-labs/mclineage/internal/ui/router"
	"golang.org/x/sync/errgroup"
)

// ErrNoStore is returned when the server is created without run history.
var ErrNoStore = errors.New("ui server requires a state store")

// Server is the HTTP server.
type Server struct {
	store     state.Store
	runner    *scan.Runner
	port      int
	watchPath string
	logger    *slog.Logger
	notifier  *notifier.Notifier
	debounce  time.Duration
}

// Config holds configuration for the UI server.
type Config struct {
	Store   state.Store
	Scanner scan.Scanner
	Port    int
	// WatchPath is a local snapshot file; changes to it trigger a scan.
	WatchPath string
	Logger    *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:     cfg.Store,
		port:      cfg.Port,
		watchPath: cfg.WatchPath,
		logger:    logger,
		notifier:  notifier.New(),
		debounce:  200 * time.Millisecond,
	}
	if cfg.Scanner != nil {
		s.runner = scan.NewRunner(cfg.Scanner, s.notifier, logger)
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	router.SetupRoutes(r, s.store, s.runner, s.notifier)
	return r
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchPath != "" && s.runner != nil {
		eg.Go(func() error {
			return s.watchSnapshot(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchSnapshot rescans when the snapshot file is written or replaced.
// The parent directory is watched because editors replace files by rename.
func (s *Server) watchSnapshot(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target, err := filepath.Abs(s.watchPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		// keep serving without reloads
		s.logger.Error("failed to watch snapshot", "path", target, "error", err)
		return nil
	}

	// Rescans run on this goroutine, so none is in flight once it returns.
	var (
		debounceTimer *time.Timer
		rescan        <-chan time.Time
	)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-rescan:
			rescan = nil
			s.logger.Debug("snapshot changed, rescanning", "file", target)
			if _, err := s.runner.Run(ctx); err != nil {
				s.logger.Error("rescan failed", "error", err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}

			if debounceTimer == nil {
				debounceTimer = time.NewTimer(s.debounce)
			} else {
				debounceTimer.Reset(s.debounce)
			}
			rescan = debounceTimer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
