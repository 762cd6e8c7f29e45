package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/mclineage/internal/collect"
	"github.com/leapstack-labs/mclineage/internal/testutil"
	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_InvalidStatePath(t *testing.T) {
	_, err := New(Config{
		Source:    &collect.MemorySource{},
		StatePath: "/nonexistent/path/state.db",
	})
	assert.Error(t, err)
}

func TestRun_SampleSnapshot(t *testing.T) {
	e := newTestEngine(t, Config{
		Source: collect.NewFileSource(testutil.WriteSnapshot(t)),
		AsOf:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, result.Stats.Nodes)
	assert.Equal(t, 12, result.Stats.Edges)
	assert.Equal(t, 2, result.Stats.UnresolvedRefs)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Degraded)
	assert.NotEmpty(t, result.Fingerprint)
	assert.Empty(t, result.RunID, "no store configured")

	p := result.Payload

	t.Run("scenario A shape", func(t *testing.T) {
		_, ok := p.Edge("transform::Q_JoinOrders", "storage::DE_Subscribers", core.RelReadsFrom)
		assert.True(t, ok)
		_, ok = p.Edge("transform::Q_JoinOrders", "storage::DE_Orders", core.RelReadsFrom)
		assert.True(t, ok)
		out, ok := p.Edge("transform::Q_JoinOrders", "storage::DE_Subscribers", core.RelWritesTo)
		require.True(t, ok)
		assert.Equal(t, 1.0, out.Confidence)
	})

	t.Run("literals and comments ignored", func(t *testing.T) {
		_, ok := p.Node("unresolved::ghost_comment")
		assert.False(t, ok)
		_, ok = p.Node("unresolved::nowhere")
		assert.False(t, ok)
		e, ok := p.Edge("transform::Q_Staging", "unresolved::unknown_table", core.RelReadsFrom)
		require.True(t, ok)
		assert.Equal(t, 0.4, e.Confidence)
	})

	t.Run("asset snippets accumulate", func(t *testing.T) {
		e, ok := p.Edge("asset::CP_Preferences", "storage::DE_Subscribers", core.RelReferences)
		require.True(t, ok)
		assert.Len(t, e.Evidence, 2)
		assert.Equal(t, 0.16, e.Confidence)
	})

	t.Run("pipeline and journey", func(t *testing.T) {
		_, ok := p.Edge("pipeline::Auto_Daily_Etl", "transform::Q_JoinOrders", core.RelExecutes)
		assert.True(t, ok)
		_, ok = p.Edge("pipeline::Auto_Daily_Etl", "transform::Q_Staging", core.RelExecutes)
		assert.True(t, ok)
		_, ok = p.Edge("pipeline::Auto_Daily_Etl", "storage::DE_Orders", core.RelWritesTo)
		assert.True(t, ok)
		_, ok = p.Edge("storage::DE_Subscribers", "interaction::J_Welcome", core.RelUsedBy)
		assert.True(t, ok)
	})

	t.Run("risk annotations", func(t *testing.T) {
		subs, ok := p.Node("storage::DE_Subscribers")
		require.True(t, ok)
		// email 50 + phone 40 = 90 sensitivity, contactable, referenced, 2 years old
		// 0.4*90 + 0.3*70 + 0.2*90 + 0.1*100 = 85
		assert.Equal(t, 85, subs.Metadata["risk_score"])
		assert.Equal(t, "high", subs.Metadata["risk_level"])
		assert.Equal(t, false, subs.Metadata["orphan"])

		archive, ok := p.Node("storage::DE_Archive")
		require.True(t, ok)
		assert.Equal(t, true, archive.Metadata["orphan"])
		assert.Equal(t, "DE_Archive", archive.Label)
	})
}

func TestRun_Deterministic(t *testing.T) {
	path := testutil.WriteSnapshot(t)

	first, err := newTestEngine(t, Config{Source: collect.NewFileSource(path)}).Run(context.Background())
	require.NoError(t, err)
	second, err := newTestEngine(t, Config{Source: collect.NewFileSource(path)}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestRun_StorageFailureIsFatal(t *testing.T) {
	e := newTestEngine(t, Config{Source: &collect.MemorySource{
		Errs: map[core.Category]error{core.CategoryStorage: errors.New("token expired")},
	}})

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistryUnavailable))
	assert.Contains(t, err.Error(), "token expired")
}

func TestRun_OtherFailuresDegrade(t *testing.T) {
	e := newTestEngine(t, Config{Source: &collect.MemorySource{
		ObjectRecords: []core.StorageObject{{Key: "DE_A", Name: "A"}},
		AssetRecords:  []core.RenderedAsset{{Key: "page", Content: `Lookup("A","x","y",1)`}},
		Errs: map[core.Category]error{
			core.CategoryTransform: errors.New("query endpoint 503"),
			core.CategoryPipeline:  errors.New("automation endpoint 503"),
		},
	}})

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Degraded, 2)
	assert.Contains(t, result.Degraded, core.CategoryTransform)
	_, ok := result.Payload.Edge("asset::page", "storage::DE_A", core.RelReferences)
	assert.True(t, ok, "assembly proceeds with the remaining categories")
}

func TestRun_Persists(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	e := newTestEngine(t, Config{
		Source:    collect.NewFileSource(testutil.WriteSnapshot(t)),
		StatePath: statePath,
	})

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	ctx := context.Background()
	run, err := e.Store().LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, result.Fingerprint, run.Fingerprint)
	assert.Equal(t, 12, run.NodeCount)

	stored, err := e.Store().LoadPayload(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, len(result.Payload.Nodes))
	assert.Len(t, stored.Edges, len(result.Payload.Edges))
}
