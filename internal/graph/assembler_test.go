package graph

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leapstack-labs/mclineage/internal/registry"
	"github.com/leapstack-labs/mclineage/internal/testutil"
	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	objects := registry.NewObjectRegistry([]core.StorageObject{
		{
			Key:  "DE_Subscribers",
			Name: "MasterSubscribers",
			Fields: []core.Field{
				{Name: "SubscriberKey", Type: "Text", IsPrimaryKey: true},
				{Name: "EmailAddress", Type: "EmailAddress"},
				{Name: "ssn_number", Type: "Text"},
			},
		},
		{Key: "DE_Orders", Name: "Orders_Daily"},
		{Key: "DE_Staging", Name: "Staging_Import"},
	})
	transforms := registry.NewTransformIndex([]core.Transform{
		{Key: "Q_JoinOrders", Name: "Join Orders"},
	})
	return NewAssembler(objects, WithTransforms(transforms), WithLogger(testutil.NewTestLogger(t)))
}

func TestUpsertNode_MergesMetadata(t *testing.T) {
	a := newTestAssembler(t)

	id, err := a.UpsertNode(core.CategoryStorage, "DE_Orders", "Orders_Daily", map[string]any{"a": 1, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, "storage::DE_Orders", id)

	id2, err := a.UpsertNode(core.CategoryStorage, "DE_Orders", "Other", map[string]any{"b": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	node, ok := a.Node(id)
	require.True(t, ok)
	assert.Equal(t, "Orders_Daily", node.Label, "label fixed at creation")
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, node.Metadata)
	assert.Equal(t, 1, a.Stats().Nodes)
}

func TestUpsertNode_LabelFallsBackToKey(t *testing.T) {
	a := newTestAssembler(t)

	id, err := a.UpsertNode(core.CategoryPipeline, "Auto_1", "", nil)
	require.NoError(t, err)

	node, _ := a.Node(id)
	assert.Equal(t, "Auto_1", node.Label)
	assert.NotNil(t, node.Metadata)
}

func TestUpsertNode_Errors(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.UpsertNode("table", "x", "", nil)
	assert.True(t, errors.Is(err, ErrInvalidCategory))

	_, err = a.UpsertNode(core.CategoryStorage, "", "", nil)
	assert.True(t, errors.Is(err, ErrEmptyKey))
}

func TestUpsertEdge_Contract(t *testing.T) {
	a := newTestAssembler(t)
	src, _ := a.UpsertNode(core.CategoryTransform, "T", "", nil)
	dst, _ := a.UpsertNode(core.CategoryStorage, "S", "", nil)

	tests := []struct {
		name    string
		source  string
		target  string
		rel     core.Relationship
		conf    float64
		wantErr error
	}{
		{name: "unknown relationship", source: src, target: dst, rel: "feeds", conf: 0.5, wantErr: ErrInvalidRelationship},
		{name: "negative confidence", source: src, target: dst, rel: core.RelReadsFrom, conf: -0.1, wantErr: ErrConfidenceRange},
		{name: "confidence above one", source: src, target: dst, rel: core.RelReadsFrom, conf: 1.01, wantErr: ErrConfidenceRange},
		{name: "unknown source", source: "transform::missing", target: dst, rel: core.RelReadsFrom, conf: 0.5, wantErr: ErrUnknownNode},
		{name: "unknown target", source: src, target: "storage::missing", rel: core.RelReadsFrom, conf: 0.5, wantErr: ErrUnknownNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.UpsertEdge(tt.source, tt.target, tt.rel, []string{"x"}, tt.conf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Equal(t, 0, a.Stats().Edges, "rejected edges are never emitted")
}

func TestUpsertEdge_MergeAccumulates(t *testing.T) {
	a := newTestAssembler(t)
	src, _ := a.UpsertNode(core.CategoryAsset, "page", "", nil)
	dst, _ := a.UpsertNode(core.CategoryStorage, "S", "", nil)

	require.NoError(t, a.UpsertEdge(src, dst, core.RelReferences, []string{"cloudpage ampscript Lookup:S"}, 0.08))
	require.NoError(t, a.UpsertEdge(src, dst, core.RelReferences, []string{"journey:J entry"}, 0.2))

	p := a.Payload()
	require.Len(t, p.Edges, 1)
	e := p.Edges[0]
	assert.Equal(t, []string{"cloudpage ampscript Lookup:S", "journey:J entry"}, e.Evidence)
	assert.Equal(t, 0.28, e.Confidence)
}

func TestUpsertEdge_ExplicitConfidenceIsFloor(t *testing.T) {
	a := newTestAssembler(t)
	src, _ := a.UpsertNode(core.CategoryTransform, "T", "", nil)
	dst, _ := a.UpsertNode(core.CategoryStorage, "S", "", nil)

	require.NoError(t, a.UpsertEdge(src, dst, core.RelWritesTo, []string{"query:T target"}, 1.0))
	require.NoError(t, a.UpsertEdge(src, dst, core.RelWritesTo, []string{"other"}, 0.02))

	e, ok := a.Payload().Edge(src, dst, core.RelWritesTo)
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Confidence)
	assert.Len(t, e.Evidence, 2)
}

func TestBuildFromSQL_ScenarioA(t *testing.T) {
	a := newTestAssembler(t)

	err := a.BuildFromSQL(core.Transform{
		Key:    "Q_JoinOrders",
		Name:   "Join Orders",
		Query:  "SELECT s.SubscriberKey, o.OrderID FROM MasterSubscribers s JOIN Orders_Daily o ON s.SubscriberKey = o.SubscriberKey",
		Output: "DE_Subscribers",
	})
	require.NoError(t, err)

	p := a.Payload()
	src := "transform::Q_JoinOrders"

	subs, ok := p.Edge(src, "storage::DE_Subscribers", core.RelReadsFrom)
	require.True(t, ok)
	assert.Equal(t, ConfidenceNameMatch, subs.Confidence)
	assert.Equal(t, []string{EvidenceReference}, subs.Evidence)

	orders, ok := p.Edge(src, "storage::DE_Orders", core.RelReadsFrom)
	require.True(t, ok)
	assert.Equal(t, ConfidenceNameMatch, orders.Confidence)

	out, ok := p.Edge(src, "storage::DE_Subscribers", core.RelWritesTo)
	require.True(t, ok)
	assert.Equal(t, 1.0, out.Confidence)
	assert.Equal(t, []string{"query:Q_JoinOrders target"}, out.Evidence)

	assert.Len(t, p.Edges, 3)
	assert.Equal(t, 0, a.Stats().UnresolvedRefs)
}

func TestBuildFromSQL_KeyMatch(t *testing.T) {
	a := newTestAssembler(t)

	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q", Query: "SELECT * FROM de_staging"}))

	e, ok := a.Payload().Edge("transform::Q", "storage::DE_Staging", core.RelReadsFrom)
	require.True(t, ok)
	assert.Equal(t, ConfidenceKeyMatch, e.Confidence)
}

func TestBuildFromSQL_ScenarioB(t *testing.T) {
	a := newTestAssembler(t)

	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q_Unknown", Query: "SELECT * FROM Unknown_Table"}))

	p := a.Payload()
	node, ok := p.Node("unresolved::unknown_table")
	require.True(t, ok)
	assert.Equal(t, core.CategoryUnresolved, node.Category)
	assert.Equal(t, "Unknown_Table", node.Label)

	e, ok := p.Edge("transform::Q_Unknown", "unresolved::unknown_table", core.RelReadsFrom)
	require.True(t, ok)
	assert.Equal(t, 0.4, e.Confidence)
	assert.Equal(t, []string{EvidenceUnmatched}, e.Evidence)
	assert.Equal(t, 1, a.Stats().UnresolvedRefs)
}

func TestBuildFromAsset_ScenarioC(t *testing.T) {
	single := newTestAssembler(t)
	require.NoError(t, single.BuildFromAsset(core.RenderedAsset{
		Key:     "page",
		Content: `%%[ SET @r = Lookup("Orders_Daily", "Total", "Id", @id) ]%%`,
	}))
	one, ok := single.Payload().Edge("asset::page", "storage::DE_Orders", core.RelReferences)
	require.True(t, ok)

	double := newTestAssembler(t)
	require.NoError(t, double.BuildFromAsset(core.RenderedAsset{
		Key: "page",
		Content: `%%[ SET @r = Lookup("Orders_Daily", "Total", "Id", @id) ]%%
<script runat="server">var de = DataExtension.Init("DE_Orders");</script>`,
	}))
	p := double.Payload()
	two, ok := p.Edge("asset::page", "storage::DE_Orders", core.RelReferences)
	require.True(t, ok)

	assert.Len(t, two.Evidence, 2)
	assert.Greater(t, two.Confidence, one.Confidence)
	assert.LessOrEqual(t, two.Confidence, 1.0)
	assert.Len(t, p.Edges, 1, "both snippets merge into one edge")
}

func TestBuildFromAsset_Unresolved(t *testing.T) {
	a := newTestAssembler(t)
	require.NoError(t, a.BuildFromAsset(core.RenderedAsset{
		Key:     "page",
		Content: `%%[ UpsertData("Ghost_DE", 1, "Id", @id) ]%%`,
	}))

	_, ok := a.Payload().Edge("asset::page", "unresolved::ghost_de", core.RelReferences)
	assert.True(t, ok)
}

func TestBuildFromPipeline(t *testing.T) {
	a := newTestAssembler(t)

	err := a.BuildFromPipeline(core.Pipeline{
		Key:    "Auto_Daily_Etl",
		Name:   "Daily ETL",
		Status: "Running",
		Steps: []core.PipelineStep{
			{Name: "Run Join", Type: "query", Transform: "Q_JoinOrders", Target: "Orders_Daily"},
			{Type: "query", Transform: "Q_Missing"},
			{Name: "Import", Type: "import", Target: "DE_Staging"},
		},
	})
	require.NoError(t, err)

	p := a.Payload()
	src := "pipeline::Auto_Daily_Etl"

	exec, ok := p.Edge(src, "transform::Q_JoinOrders", core.RelExecutes)
	require.True(t, ok)
	assert.Equal(t, []string{"automation:Auto_Daily_Etl activity:Run Join"}, exec.Evidence)
	assert.Equal(t, 0.2, exec.Confidence)

	_, ok = p.Edge(src, "storage::DE_Orders", core.RelWritesTo)
	assert.True(t, ok)
	_, ok = p.Edge(src, "storage::DE_Staging", core.RelWritesTo)
	assert.True(t, ok)

	missing, ok := p.Edge(src, "unresolved::q_missing", core.RelExecutes)
	require.True(t, ok)
	assert.Equal(t, []string{"automation:Auto_Daily_Etl activity:step-2"}, missing.Evidence)

	node, _ := p.Node(src)
	assert.Equal(t, "Daily ETL", node.Label)
	assert.Equal(t, "Running", node.Metadata["status"])
}

func TestBuildFromInteraction(t *testing.T) {
	a := newTestAssembler(t)

	require.NoError(t, a.BuildFromInteraction(core.Interaction{Key: "welcome", Name: "Welcome", Entry: "MasterSubscribers"}))
	require.NoError(t, a.BuildFromInteraction(core.Interaction{Key: "no-entry"}))

	p := a.Payload()
	e, ok := p.Edge("storage::DE_Subscribers", "interaction::welcome", core.RelUsedBy)
	require.True(t, ok)
	assert.Equal(t, []string{"journey:welcome entry"}, e.Evidence)
	assert.Equal(t, 0.2, e.Confidence)

	_, ok = p.Node("interaction::no-entry")
	assert.True(t, ok)
	assert.Len(t, p.Edges, 1)
}

func TestAddStorageObjects_ClassifiesFields(t *testing.T) {
	a := newTestAssembler(t)
	require.NoError(t, a.AddStorageObjects(a.objects.All()))

	node, ok := a.Node("storage::DE_Subscribers")
	require.True(t, ok)
	assert.Equal(t, "MasterSubscribers", node.Label)
	assert.Equal(t, true, node.Metadata["has_pii"])

	fields, ok := node.Metadata["fields"].([]FieldMeta)
	require.True(t, ok)
	require.Len(t, fields, 3)
	assert.Equal(t, core.SensitivityNone, fields[0].Sensitivity)
	assert.True(t, fields[0].PrimaryKey)
	assert.Equal(t, core.SensitivityEmail, fields[1].Sensitivity)
	assert.Equal(t, core.SensitivityIdentifier, fields[2].Sensitivity)

	// SQL contributions must not wipe classification metadata
	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q", Query: "SELECT * FROM MasterSubscribers"}))
	node, _ = a.Node("storage::DE_Subscribers")
	assert.Contains(t, node.Metadata, "fields")
}

func assembleAll(t *testing.T) []byte {
	t.Helper()
	a := newTestAssembler(t)
	require.NoError(t, a.AddStorageObjects(a.objects.All()))
	require.NoError(t, a.BuildFromSQL(core.Transform{
		Key:    "Q_JoinOrders",
		Query:  "SELECT * FROM MasterSubscribers JOIN Orders_Daily JOIN Unknown_Table",
		Output: "DE_Subscribers",
	}))
	require.NoError(t, a.BuildFromPipeline(core.Pipeline{
		Key:   "Auto",
		Steps: []core.PipelineStep{{Name: "s", Transform: "Q_JoinOrders", Target: "DE_Orders"}},
	}))
	require.NoError(t, a.BuildFromInteraction(core.Interaction{Key: "j", Entry: "DE_Orders"}))
	require.NoError(t, a.BuildFromAsset(core.RenderedAsset{
		Key:     "page",
		Content: `Lookup("Orders_Daily","a","b",1) LookupRows("Orders_Daily","x",1)`,
	}))

	data, err := json.Marshal(a.Payload())
	require.NoError(t, err)
	return data
}

func TestAssembler_Idempotent(t *testing.T) {
	assert.Equal(t, string(assembleAll(t)), string(assembleAll(t)))
}

func TestPayload_UniqueIDsAndBounds(t *testing.T) {
	var p core.Payload
	require.NoError(t, json.Unmarshal(assembleAll(t), &p))

	nodeIDs := map[string]bool{}
	for _, n := range p.Nodes {
		assert.False(t, nodeIDs[n.ID], "duplicate node %s", n.ID)
		nodeIDs[n.ID] = true
	}

	edgeIDs := map[string]bool{}
	for _, e := range p.Edges {
		assert.False(t, edgeIDs[e.ID()], "duplicate edge %s", e.ID())
		edgeIDs[e.ID()] = true
		assert.GreaterOrEqual(t, e.Confidence, 0.0)
		assert.LessOrEqual(t, e.Confidence, 1.0)
		assert.True(t, nodeIDs[e.Source], "dangling source %s", e.Source)
		assert.True(t, nodeIDs[e.Target], "dangling target %s", e.Target)
	}

	for i := 1; i < len(p.Nodes); i++ {
		assert.Less(t, p.Nodes[i-1].ID, p.Nodes[i].ID, "nodes sorted")
	}
}

func TestStats(t *testing.T) {
	a := newTestAssembler(t)
	require.NoError(t, a.AddStorageObjects(a.objects.All()))
	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q", Query: "SELECT * FROM A JOIN B JOIN MasterSubscribers"}))
	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q2", Query: "SELECT * FROM a"}))

	s := a.Stats()
	assert.Equal(t, 3, s.ByCategory[core.CategoryStorage])
	assert.Equal(t, 2, s.ByCategory[core.CategoryTransform])
	assert.Equal(t, 2, s.ByCategory[core.CategoryUnresolved], "A and a share a node")
	assert.Equal(t, 3, s.UnresolvedRefs)
	assert.Equal(t, 7, s.Nodes)
	assert.Equal(t, 4, s.Edges)
	assert.Equal(t, 1, a.Degree("storage::DE_Subscribers"))
}

func TestBuildFromSQL_NonASCIIName(t *testing.T) {
	objects := registry.NewObjectRegistry([]core.StorageObject{
		{Key: "DE_Kunden", Name: "Kundenübersicht"},
	})
	a := NewAssembler(objects, WithLogger(testutil.NewTestLogger(t)))

	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "q", Query: "SELECT * FROM Kundenübersicht"}))

	p := a.Payload()
	e, ok := p.Edge("transform::q", "storage::DE_Kunden", core.RelReadsFrom)
	require.True(t, ok)
	assert.Equal(t, ConfidenceNameMatch, e.Confidence)
	assert.Len(t, p.Edges, 1)
	assert.Equal(t, 0, a.Stats().UnresolvedRefs)
}

func TestUnresolvedNode_RefKind(t *testing.T) {
	a := newTestAssembler(t)

	require.NoError(t, a.BuildFromSQL(core.Transform{Key: "Q", Query: "SELECT * FROM Ghost_Table"}))
	require.NoError(t, a.BuildFromPipeline(core.Pipeline{
		Key:   "Auto",
		Steps: []core.PipelineStep{{Type: "query", Transform: "Q_Gone"}},
	}))

	p := a.Payload()
	storage, ok := p.Node("unresolved::ghost_table")
	require.True(t, ok)
	assert.Equal(t, RefKindStorage, storage.Metadata[MetaRefKind])

	transform, ok := p.Node("unresolved::q_gone")
	require.True(t, ok)
	assert.Equal(t, RefKindTransform, transform.Metadata[MetaRefKind])

	// the same spelling missed as both kinds keeps both
	require.NoError(t, a.BuildFromPipeline(core.Pipeline{
		Key:   "Auto_2",
		Steps: []core.PipelineStep{{Type: "query", Transform: "GHOST_TABLE"}},
	}))
	shared, ok := a.Payload().Node("unresolved::ghost_table")
	require.True(t, ok)
	assert.Equal(t, "storage,transform", shared.Metadata[MetaRefKind])
	assert.Equal(t, "Ghost_Table", shared.Label, "label fixed at creation")
}
