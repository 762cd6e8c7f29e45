package collect

import (
	"context"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

// MemorySource serves records held in memory. Errs makes a category fail.
type MemorySource struct {
	Label              string
	ObjectRecords      []core.StorageObject
	TransformRecords   []core.Transform
	PipelineRecords    []core.Pipeline
	InteractionRecords []core.Interaction
	AssetRecords       []core.RenderedAsset
	Errs               map[core.Category]error
}

// Name implements Source.
func (m *MemorySource) Name() string {
	if m.Label == "" {
		return "memory"
	}
	return m.Label
}

// StorageObjects implements Source.
func (m *MemorySource) StorageObjects(ctx context.Context) ([]core.StorageObject, error) {
	return serve(ctx, m.Errs[core.CategoryStorage], m.ObjectRecords)
}

// Transforms implements Source.
func (m *MemorySource) Transforms(ctx context.Context) ([]core.Transform, error) {
	return serve(ctx, m.Errs[core.CategoryTransform], m.TransformRecords)
}

// Pipelines implements Source.
func (m *MemorySource) Pipelines(ctx context.Context) ([]core.Pipeline, error) {
	return serve(ctx, m.Errs[core.CategoryPipeline], m.PipelineRecords)
}

// Interactions implements Source.
func (m *MemorySource) Interactions(ctx context.Context) ([]core.Interaction, error) {
	return serve(ctx, m.Errs[core.CategoryInteraction], m.InteractionRecords)
}

// Assets implements Source.
func (m *MemorySource) Assets(ctx context.Context) ([]core.RenderedAsset, error) {
	return serve(ctx, m.Errs[core.CategoryAsset], m.AssetRecords)
}

func serve[T any](ctx context.Context, err error, records []T) ([]T, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	out := make([]T, len(records))
	copy(out, records)
	return out, nil
}
