package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

const runColumns = `id, source, started_at, duration_ms, fingerprint, node_count, edge_count, unresolved_refs, skipped, degraded`

// SaveRun stores the run summary and its payload in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, payload core.Payload) (err error) {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	degraded, err := json.Marshal(nonNilDegraded(run.Degraded))
	if err != nil {
		return fmt.Errorf("failed to encode degraded categories: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds(),
		run.Fingerprint, run.NodeCount, run.EdgeCount, run.UnresolvedRefs, run.Skipped, string(degraded),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, n := range payload.Nodes {
		meta, mErr := json.Marshal(n.Metadata)
		if mErr != nil {
			err = fmt.Errorf("failed to encode metadata of %s: %w", n.ID, mErr)
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO nodes (run_id, id, category, label, metadata) VALUES (?, ?, ?, ?, ?)`,
			run.ID, n.ID, string(n.Category), n.Label, string(meta),
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	for _, e := range payload.Edges {
		ev, mErr := json.Marshal(e.Evidence)
		if mErr != nil {
			err = fmt.Errorf("failed to encode evidence of %s: %w", e.ID(), mErr)
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO edges (run_id, edge_id, source, target, relationship, evidence, confidence) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, e.ID(), e.Source, e.Target, string(e.Relationship), string(ev), e.Confidence,
		)
		if err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", e.ID(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("run saved",
		slog.String("id", run.ID),
		slog.Int("nodes", len(payload.Nodes)),
		slog.Int("edges", len(payload.Edges)),
	)
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun retrieves the most recent run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadPayload rebuilds the stored payload of a run, sorted like the original.
func (s *SQLiteStore) LoadPayload(ctx context.Context, runID string) (core.Payload, error) {
	if s.db == nil {
		return core.Payload{}, fmt.Errorf("database not opened")
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return core.Payload{}, err
	}

	p := core.Payload{Nodes: []core.Node{}, Edges: []core.Edge{}}

	nodeRows, err := s.db.QueryContext(ctx,
		`SELECT id, category, label, metadata FROM nodes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return p, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer func() { _ = nodeRows.Close() }()
	for nodeRows.Next() {
		var n core.Node
		var category, meta string
		if err := nodeRows.Scan(&n.ID, &category, &n.Label, &meta); err != nil {
			return p, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Category = core.Category(category)
		if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
			return p, fmt.Errorf("failed to decode metadata of %s: %w", n.ID, err)
		}
		p.Nodes = append(p.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return p, err
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT source, target, relationship, evidence, confidence FROM edges WHERE run_id = ? ORDER BY edge_id`, runID)
	if err != nil {
		return p, fmt.Errorf("failed to load edges: %w", err)
	}
	defer func() { _ = edgeRows.Close() }()
	for edgeRows.Next() {
		var e core.Edge
		var rel, ev string
		if err := edgeRows.Scan(&e.Source, &e.Target, &rel, &ev, &e.Confidence); err != nil {
			return p, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Relationship = core.Relationship(rel)
		if err := json.Unmarshal([]byte(ev), &e.Evidence); err != nil {
			return p, fmt.Errorf("failed to decode evidence of %s: %w", e.ID(), err)
		}
		p.Edges = append(p.Edges, e)
	}
	return p, edgeRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		durationMS int64
		degraded   string
	)
	err := row.Scan(&run.ID, &run.Source, &startedAt, &durationMS, &run.Fingerprint,
		&run.NodeCount, &run.EdgeCount, &run.UnresolvedRefs, &run.Skipped, &degraded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at of %s: %w", run.ID, err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(degraded), &run.Degraded); err != nil {
		return nil, fmt.Errorf("failed to decode degraded of %s: %w", run.ID, err)
	}
	if len(run.Degraded) == 0 {
		run.Degraded = nil
	}
	return &run, nil
}

func nonNilDegraded(m map[core.Category]string) map[core.Category]string {
	if m == nil {
		return map[core.Category]string{}
	}
	return m
}
