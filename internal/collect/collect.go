// Package collect retrieves platform metadata for one lineage run.
//
// A Source yields the records of each category. Collect queries all five
// categories in parallel, validates the records at the boundary and folds
// every failure into a per-category Result, so the assembler only ever sees
// typed records and empty-with-reason categories.
package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/mclineage/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "mclineage/collect"

// Source retrieves platform records per category.
// Implementations return an error instead of partial data when retrieval fails.
type Source interface {
	Name() string
	StorageObjects(ctx context.Context) ([]core.StorageObject, error)
	Transforms(ctx context.Context) ([]core.Transform, error)
	Pipelines(ctx context.Context) ([]core.Pipeline, error)
	Interactions(ctx context.Context) ([]core.Interaction, error)
	Assets(ctx context.Context) ([]core.RenderedAsset, error)
}

// Result reports the retrieval outcome of one category.
type Result struct {
	Category core.Category `json:"category"`
	// Count is the number of records kept
	Count int `json:"count"`
	// Skipped counts records dropped for lacking a usable key
	Skipped int `json:"skipped"`
	// Reason is set when the category degraded to zero records
	Reason string `json:"reason,omitempty"`
}

// Degraded reports whether retrieval failed for the category.
func (r Result) Degraded() bool {
	return r.Reason != ""
}

// Snapshot is one retrieval pass worth of records.
type Snapshot struct {
	StorageObjects []core.StorageObject
	Transforms     []core.Transform
	Pipelines      []core.Pipeline
	Interactions   []core.Interaction
	Assets         []core.RenderedAsset

	// Results holds one entry per category in core.Categories order
	Results []Result
}

// Result returns the retrieval result of a category.
func (s *Snapshot) Result(category core.Category) (Result, bool) {
	for _, r := range s.Results {
		if r.Category == category {
			return r, true
		}
	}
	return Result{}, false
}

// Degraded maps every failed category to its reason.
func (s *Snapshot) Degraded() map[core.Category]string {
	out := map[core.Category]string{}
	for _, r := range s.Results {
		if r.Degraded() {
			out[r.Category] = r.Reason
		}
	}
	return out
}

// Skipped returns the total number of records dropped at the boundary.
func (s *Snapshot) Skipped() int {
	total := 0
	for _, r := range s.Results {
		total += r.Skipped
	}
	return total
}

// Collect retrieves every category from src in parallel.
// A failing category yields zero records and a reason; Collect itself only
// fails when ctx is cancelled.
func Collect(ctx context.Context, src Source, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("source", src.Name()))

	snap := &Snapshot{}
	var storage, transforms, pipelines, interactions, assets Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.StorageObjects, storage = fetch(gctx, logger, core.CategoryStorage, src.StorageObjects,
			func(o core.StorageObject) string { return o.Key })
		return nil
	})
	g.Go(func() error {
		snap.Transforms, transforms = fetch(gctx, logger, core.CategoryTransform, src.Transforms,
			func(t core.Transform) string { return t.Key })
		return nil
	})
	g.Go(func() error {
		snap.Pipelines, pipelines = fetch(gctx, logger, core.CategoryPipeline, src.Pipelines,
			func(p core.Pipeline) string { return p.Key })
		return nil
	})
	g.Go(func() error {
		snap.Interactions, interactions = fetch(gctx, logger, core.CategoryInteraction, src.Interactions,
			func(i core.Interaction) string { return i.Key })
		return nil
	})
	g.Go(func() error {
		snap.Assets, assets = fetch(gctx, logger, core.CategoryAsset, src.Assets,
			func(a core.RenderedAsset) string { return a.Key })
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect cancelled: %w", err)
	}

	snap.Results = []Result{storage, transforms, pipelines, interactions, assets}
	return snap, nil
}

// fetch runs one category retrieval inside its own span and drops keyless records.
func fetch[T any](
	ctx context.Context,
	logger *slog.Logger,
	category core.Category,
	retrieve func(context.Context) ([]T, error),
	keyOf func(T) string,
) ([]T, Result) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "collect."+string(category),
		trace.WithAttributes(attribute.String("mclineage.category", string(category))))
	defer span.End()

	result := Result{Category: category}
	logger.Debug("retrieving category", slog.String("category", string(category)))

	records, err := retrieve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Reason = err.Error()
		logger.Warn("category retrieval failed",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return nil, result
	}

	kept := make([]T, 0, len(records))
	for _, r := range records {
		if keyOf(r) == "" {
			result.Skipped++
			continue
		}
		kept = append(kept, r)
	}
	result.Count = len(kept)

	span.SetAttributes(
		attribute.Int("mclineage.records", result.Count),
		attribute.Int("mclineage.skipped", result.Skipped),
	)
	if result.Skipped > 0 {
		logger.Warn("skipped records without key",
			slog.String("category", string(category)),
			slog.Int("skipped", result.Skipped),
		)
	}
	logger.Debug("category retrieved", slog.String("category", string(category)), slog.Int("records", result.Count))
	return kept, result
}
