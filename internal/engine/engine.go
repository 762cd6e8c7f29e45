// Package engine orchestrates a lineage run.
// It collects metadata through a Source, assembles the graph on a single
// goroutine, annotates storage objects with risk and optionally persists the
// run. All settings come from an explicit Config; nothing is global.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/mclineage/internal/collect"
	"github.com/leapstack-labs/mclineage/internal/state"
)

// ErrRegistryUnavailable is returned when storage objects could not be retrieved.
// Every other category resolves against them, so the run cannot continue.
var ErrRegistryUnavailable = errors.New("storage object registry unavailable")

// Engine runs lineage assembly.
type Engine struct {
	source collect.Source
	logger *slog.Logger
	store  state.Store
	asOf   time.Time
	now    func() time.Time
}

// Config holds engine configuration.
type Config struct {
	// Source provides the platform records (required)
	Source collect.Source
	// StatePath is the SQLite run history; empty disables persistence
	StatePath string
	// Store overrides StatePath with an already opened store
	Store state.Store
	// AsOf is the reference date for object age in risk scoring (optional)
	AsOf time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The state store is opened when configured.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("engine requires a source")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		source: cfg.Source,
		logger: logger,
		store:  cfg.Store,
		asOf:   cfg.AsOf,
		now:    time.Now,
	}

	if e.store == nil && cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}

	logger.Debug("engine initialized",
		slog.String("source", cfg.Source.Name()),
		slog.Bool("persist", e.store != nil),
	)
	return e, nil
}

// Store returns the run history, nil when persistence is disabled.
func (e *Engine) Store() state.Store {
	return e.store
}

// Close releases the state store.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
