// Package scan triggers engine runs from the UI and streams run events.
package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/mclineage/internal/engine"
	"github.com/leapstack-labs/mclineage/internal/ui/notifier"
)

// Scanner runs one collection and assembly. *engine.Engine implements it.
type Scanner interface {
	Run(ctx context.Context) (*engine.Result, error)
}

// Runner serializes scans and announces each finished run.
type Runner struct {
	mu       sync.Mutex
	scanner  Scanner
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(scanner Scanner, notify *notifier.Notifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{scanner: scanner, notifier: notify, logger: logger}
}

// Run executes a scan. Concurrent calls wait for the one in flight.
func (r *Runner) Run(ctx context.Context) (*engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.scanner.Run(ctx)
	if err != nil {
		r.logger.Error("scan failed", "error", err)
		return nil, err
	}

	id := res.RunID
	if id == "" {
		id = res.Fingerprint
	}
	r.notifier.Broadcast(id)
	return res, nil
}
