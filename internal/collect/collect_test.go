package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/mclineage/internal/testutil"
	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_MemorySource(t *testing.T) {
	src := &MemorySource{
		ObjectRecords: []core.StorageObject{
			{Key: "DE_A", Name: "A"},
			{Name: "keyless"},
		},
		TransformRecords: []core.Transform{{Key: "Q", Query: "SELECT * FROM A"}},
		Errs: map[core.Category]error{
			core.CategoryPipeline: errors.New("automation endpoint returned 500"),
		},
	}

	snap, err := Collect(context.Background(), src, testutil.NewTestLogger(t))
	require.NoError(t, err)

	require.Len(t, snap.StorageObjects, 1)
	assert.Equal(t, "DE_A", snap.StorageObjects[0].Key)
	assert.Len(t, snap.Transforms, 1)
	assert.Empty(t, snap.Pipelines)

	storage, ok := snap.Result(core.CategoryStorage)
	require.True(t, ok)
	assert.Equal(t, Result{Category: core.CategoryStorage, Count: 1, Skipped: 1}, storage)

	assert.Equal(t, map[core.Category]string{
		core.CategoryPipeline: "automation endpoint returned 500",
	}, snap.Degraded())
	assert.Equal(t, 1, snap.Skipped())
	assert.Len(t, snap.Results, 5)
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, &MemorySource{}, testutil.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFileSource_SampleSnapshot(t *testing.T) {
	path := testutil.WriteSnapshot(t)

	snap, err := Collect(context.Background(), NewFileSource(path), testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, snap.Degraded())

	t.Run("storage objects", func(t *testing.T) {
		require.Len(t, snap.StorageObjects, 4)
		subs := snap.StorageObjects[0]
		assert.Equal(t, "DE_Subscribers", subs.Key)
		assert.Equal(t, "MasterSubscribers", subs.Name)
		assert.Equal(t, "1201", subs.Folder)
		assert.Equal(t, int64(15000), subs.RowCount)
		require.NotNil(t, subs.ModifiedAt)
		assert.Equal(t, 2023, subs.ModifiedAt.Year())
		require.Len(t, subs.Fields, 3)
		assert.Equal(t, core.Field{Name: "SubscriberKey", Type: "Text", IsPrimaryKey: true}, subs.Fields[0])
		assert.Equal(t, "EmailAddress", subs.Fields[1].Type)

		orders := snap.StorageObjects[1]
		assert.Equal(t, "DE_Orders", orders.Key)
		assert.Equal(t, "Number", orders.Fields[0].Type)

		archive := snap.StorageObjects[3]
		assert.Equal(t, "DE_Archive", archive.Label(), "label falls back to key")

		storage, _ := snap.Result(core.CategoryStorage)
		assert.Equal(t, 1, storage.Skipped)
	})

	t.Run("transforms", func(t *testing.T) {
		require.Len(t, snap.Transforms, 2)
		join := snap.Transforms[0]
		assert.Equal(t, "Q_JoinOrders", join.Key)
		assert.Equal(t, "DE_Subscribers", join.Output, "nested target resolves to its key")
		assert.Equal(t, "Overwrite", join.UpdateType)
		assert.Contains(t, join.Query, "JOIN Orders_Daily")

		staging := snap.Transforms[1]
		assert.Equal(t, "DE_Orders", staging.Output)
		assert.Contains(t, staging.Query, "Unknown_Table")
	})

	t.Run("pipelines", func(t *testing.T) {
		require.Len(t, snap.Pipelines, 1)
		p := snap.Pipelines[0]
		assert.Equal(t, "Auto_Daily_Etl", p.Key)
		assert.Equal(t, "Running", p.Status)
		require.Len(t, p.Steps, 2, "activities flattened out of steps")
		assert.Equal(t, core.PipelineStep{Name: "Run Join", Type: "300", Transform: "Q_JoinOrders"}, p.Steps[0])
		assert.Equal(t, core.PipelineStep{Name: "Load Staging", Type: "query", Transform: "Q_Staging", Target: "DE_Orders"}, p.Steps[1])
	})

	t.Run("interactions", func(t *testing.T) {
		require.Len(t, snap.Interactions, 2)
		assert.Equal(t, "DE_Subscribers", snap.Interactions[0].Entry)
		assert.Equal(t, "", snap.Interactions[1].Entry)
	})

	t.Run("assets", func(t *testing.T) {
		require.Len(t, snap.Assets, 1)
		a := snap.Assets[0]
		assert.Equal(t, "CP_Preferences", a.Key)
		assert.Equal(t, "webpage", a.AssetType)
		assert.Contains(t, a.Content, `DataExtension.Init("DE_Subscribers")`)
	})
}

func TestFileSource_JSONAndMissingSections(t *testing.T) {
	path := testutil.WriteFile(t, "snapshot.json", `{
  "storage_objects": [{"key": 42, "name": "Numeric Key"}],
  "transforms": "not a list"
}`)

	snap, err := Collect(context.Background(), NewFileSource(path), testutil.NewTestLogger(t))
	require.NoError(t, err)

	require.Len(t, snap.StorageObjects, 1)
	assert.Equal(t, "42", snap.StorageObjects[0].Key)

	degraded := snap.Degraded()
	assert.Contains(t, degraded, core.CategoryTransform)
	assert.NotContains(t, degraded, core.CategoryPipeline, "missing section is empty, not degraded")
	assert.Empty(t, snap.Assets)
}

func TestFileSource_MissingFileDegradesEveryCategory(t *testing.T) {
	snap, err := Collect(context.Background(), NewFileSource(t.TempDir()+"/absent.yaml"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Len(t, snap.Degraded(), 5)
}

func TestCanonicalize(t *testing.T) {
	got := canonicalize(map[string]any{
		"CustomerKey": "",
		"ID":          7,
		"Query_Text":  "SELECT 1",
	}, transformAliases)

	assert.Equal(t, map[string]any{"key": 7, "query": "SELECT 1"}, got)
}

func TestCanonicalize_CollidingKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want any
	}{
		{
			name: "sorted order decides",
			raw:  map[string]any{"name": "lower", "Name": "Upper", "NAME": "Caps"},
			want: "Caps",
		},
		{
			name: "empty value never shadows",
			raw:  map[string]any{"NAME": "", "Name": "Upper", "name": "lower"},
			want: "Upper",
		},
		{
			name: "separators normalize away",
			raw:  map[string]any{"display_name": "snake", "DisplayName": "camel"},
			want: "camel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// map iteration order varies between calls
			for range 50 {
				got := canonicalize(tt.raw, storageAliases)
				require.Equal(t, tt.want, got["name"])
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-02T03:04:05Z", "2024-01-02T03:04:05Z"},
		{"2024-01-02T03:04:05", "2024-01-02T03:04:05Z"},
		{"2024-01-02", "2024-01-02T00:00:00Z"},
		{"1/2/2024 3:04:05 PM", "2024-01-02T15:04:05Z"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseTime(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02T15:04:05Z07:00"))
		})
	}
	assert.Nil(t, parseTime("yesterday"))
	assert.Nil(t, parseTime(""))
}
