package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/mclineage/internal/collect"
	"github.com/leapstack-labs/mclineage/internal/export"
	"github.com/leapstack-labs/mclineage/internal/graph"
	"github.com/leapstack-labs/mclineage/internal/registry"
	"github.com/leapstack-labs/mclineage/internal/risk"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Result is the outcome of one run.
type Result struct {
	// RunID is set when the run was persisted
	RunID       string                   `json:"run_id,omitempty"`
	Source      string                   `json:"source"`
	StartedAt   time.Time                `json:"started_at"`
	Duration    time.Duration            `json:"duration"`
	Payload     core.Payload             `json:"-"`
	Stats       graph.Stats              `json:"stats"`
	Collection  []collect.Result         `json:"collection"`
	Degraded    map[core.Category]string `json:"degraded,omitempty"`
	Skipped     int                      `json:"skipped"`
	Fingerprint string                   `json:"fingerprint"`
}

// Run collects, assembles and scores one lineage graph.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := e.now().UTC()
	e.logger.Info("starting lineage run", slog.String("source", e.source.Name()))

	snap, err := collect.Collect(ctx, e.source, e.logger)
	if err != nil {
		return nil, err
	}
	if r, ok := snap.Result(core.CategoryStorage); ok && r.Degraded() {
		return nil, fmt.Errorf("%w: %s", ErrRegistryUnavailable, r.Reason)
	}

	asm, err := e.assemble(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble graph: %w", err)
	}

	payload := asm.Payload()
	fingerprint, err := export.Fingerprint(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint graph: %w", err)
	}

	result := &Result{
		Source:      e.source.Name(),
		StartedAt:   started,
		Duration:    e.now().UTC().Sub(started),
		Payload:     payload,
		Stats:       asm.Stats(),
		Collection:  snap.Results,
		Degraded:    snap.Degraded(),
		Skipped:     snap.Skipped(),
		Fingerprint: fingerprint,
	}

	if e.store != nil {
		run := &state.Run{
			Source:         result.Source,
			StartedAt:      result.StartedAt,
			Duration:       result.Duration,
			Fingerprint:    result.Fingerprint,
			NodeCount:      result.Stats.Nodes,
			EdgeCount:      result.Stats.Edges,
			UnresolvedRefs: result.Stats.UnresolvedRefs,
			Skipped:        result.Skipped,
			Degraded:       result.Degraded,
		}
		if err := e.store.SaveRun(ctx, run, payload); err != nil {
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
		result.RunID = run.ID
	}

	e.logger.Info("lineage run complete",
		slog.Int("nodes", result.Stats.Nodes),
		slog.Int("edges", result.Stats.Edges),
		slog.Int("unresolved", result.Stats.UnresolvedRefs),
		slog.Int("skipped", result.Skipped),
		slog.Int("degraded", len(result.Degraded)),
		slog.String("fingerprint", result.Fingerprint),
	)
	return result, nil
}

// assemble feeds every category into a fresh assembler, storage objects first.
func (e *Engine) assemble(snap *collect.Snapshot) (*graph.Assembler, error) {
	objects := registry.NewObjectRegistry(snap.StorageObjects)
	transforms := registry.NewTransformIndex(snap.Transforms)
	asm := graph.NewAssembler(objects, graph.WithTransforms(transforms), graph.WithLogger(e.logger))

	if err := asm.AddStorageObjects(objects.All()); err != nil {
		return nil, err
	}
	for _, t := range snap.Transforms {
		if err := asm.BuildFromSQL(t); err != nil {
			return nil, fmt.Errorf("transform %s: %w", t.Key, err)
		}
	}
	for _, p := range snap.Pipelines {
		if err := asm.BuildFromPipeline(p); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Key, err)
		}
	}
	for _, in := range snap.Interactions {
		if err := asm.BuildFromInteraction(in); err != nil {
			return nil, fmt.Errorf("interaction %s: %w", in.Key, err)
		}
	}
	for _, a := range snap.Assets {
		if err := asm.BuildFromAsset(a); err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.Key, err)
		}
	}

	if err := e.annotateRisk(asm, objects); err != nil {
		return nil, err
	}
	return asm, nil
}

// annotateRisk writes risk_score, risk_level and orphan into storage node metadata.
func (e *Engine) annotateRisk(asm *graph.Assembler, objects *registry.ObjectRegistry) error {
	for _, obj := range objects.All() {
		id := core.NodeID(core.CategoryStorage, obj.Key)
		assessment := risk.Score(risk.Input{
			Fields:     obj.Fields,
			Referenced: asm.Degree(id) > 0,
			ModifiedAt: obj.ModifiedAt,
			AsOf:       e.asOf,
		})
		_, err := asm.UpsertNode(core.CategoryStorage, obj.Key, "", map[string]any{
			"risk_score": assessment.Score,
			"risk_level": string(assessment.Level),
			"orphan":     assessment.Orphan,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
