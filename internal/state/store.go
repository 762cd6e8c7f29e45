// Package state persists lineage runs in SQLite.
// Each run stores its summary and the full node/edge payload, so earlier graphs
// can be served and compared without re-collecting.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

// ErrRunNotFound is returned when a run id or the latest run does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is the persisted summary of one assembly.
type Run struct {
	ID             string                   `json:"id"`
	Source         string                   `json:"source"`
	StartedAt      time.Time                `json:"started_at"`
	Duration       time.Duration            `json:"duration"`
	Fingerprint    string                   `json:"fingerprint"`
	NodeCount      int                      `json:"node_count"`
	EdgeCount      int                      `json:"edge_count"`
	UnresolvedRefs int                      `json:"unresolved_refs"`
	Skipped        int                      `json:"skipped"`
	Degraded       map[core.Category]string `json:"degraded,omitempty"`
}

// Store is the run history.
type Store interface {
	// SaveRun stores a run with its payload. An empty run ID is filled in.
	SaveRun(ctx context.Context, run *Run, payload core.Payload) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	// ListRuns returns runs newest first; limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	LoadPayload(ctx context.Context, runID string) (core.Payload, error)
	Close() error
}
