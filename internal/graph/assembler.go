// Package graph assembles the lineage graph.
//
// An Assembler owns the node and edge collections of a single run. Every
// contribution goes through UpsertNode and UpsertEdge, which enforce identity
// based deduplication: one node per category and key, one edge per
// (source, target, relationship). An Assembler is not safe for concurrent use;
// callers retrieve metadata first and assemble from a single goroutine.
package graph

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/leapstack-labs/mclineage/internal/evidence"
	"github.com/leapstack-labs/mclineage/internal/registry"
	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Confidence values assigned without the scorer.
const (
	ConfidenceNameMatch  = 0.9
	ConfidenceKeyMatch   = 0.8
	ConfidenceUnresolved = 0.4
	ConfidenceDeclared   = 1.0
)

// Evidence strings emitted by the SQL builder.
const (
	EvidenceReference = "reference"
	EvidenceUnmatched = "unmatched token"
)

// edgeState tracks the floor an edge's confidence may not drop under.
type edgeState struct {
	edge core.Edge
	// floor is the highest confidence explicitly supplied for the edge
	floor float64
}

// Assembler builds a lineage graph from platform records.
type Assembler struct {
	objects    *registry.ObjectRegistry
	transforms *registry.TransformIndex
	logger     *slog.Logger

	nodes map[string]*core.Node
	edges map[string]*edgeState

	// unresolvedRefs counts every miss, not just distinct tokens
	unresolvedRefs int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for debug tracing of resolution.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTransforms sets the index used to resolve transform references in pipeline steps.
func WithTransforms(idx *registry.TransformIndex) Option {
	return func(a *Assembler) {
		a.transforms = idx
	}
}

// NewAssembler creates an empty assembler that resolves references against objects.
func NewAssembler(objects *registry.ObjectRegistry, opts ...Option) *Assembler {
	a := &Assembler{
		objects:    objects,
		transforms: registry.NewTransformIndex(nil),
		logger:     slog.New(slog.DiscardHandler),
		nodes:      make(map[string]*core.Node),
		edges:      make(map[string]*edgeState),
	}
	if a.objects == nil {
		a.objects = registry.NewObjectRegistry(nil)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UpsertNode creates a node or merges metadata into the existing one.
// Supplied metadata keys overwrite existing keys. The label is fixed when the
// node is created; an empty label falls back to the key.
func (a *Assembler) UpsertNode(category core.Category, key, label string, metadata map[string]any) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("upsert node %q: %w: %q", key, ErrInvalidCategory, category)
	}
	if key == "" {
		return "", fmt.Errorf("upsert %s node: %w", category, ErrEmptyKey)
	}

	id := core.NodeID(category, key)
	node, exists := a.nodes[id]
	if !exists {
		if label == "" {
			label = key
		}
		node = &core.Node{
			ID:       id,
			Category: category,
			Label:    label,
			Metadata: make(map[string]any, len(metadata)),
		}
		a.nodes[id] = node
	}
	maps.Copy(node.Metadata, metadata)
	return id, nil
}

// UpsertEdge creates an edge or merges evidence into the existing one.
//
// A new edge takes the supplied confidence. An existing edge gets the new
// evidence appended and its confidence recomputed by the evidence scorer over
// the merged list, never dropping below the highest confidence supplied for it.
func (a *Assembler) UpsertEdge(source, target string, rel core.Relationship, ev []string, confidence float64) error {
	if !rel.Valid() {
		return fmt.Errorf("upsert edge %s -> %s: %w: %q", source, target, ErrInvalidRelationship, rel)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("upsert edge %s -> %s: %w: %v", source, target, ErrConfidenceRange, confidence)
	}
	if _, ok := a.nodes[source]; !ok {
		return fmt.Errorf("upsert edge source: %w: %s", ErrUnknownNode, source)
	}
	if _, ok := a.nodes[target]; !ok {
		return fmt.Errorf("upsert edge target: %w: %s", ErrUnknownNode, target)
	}

	id := core.EdgeID(source, target, rel)
	state, exists := a.edges[id]
	if !exists {
		a.edges[id] = &edgeState{
			edge: core.Edge{
				Source:       source,
				Target:       target,
				Relationship: rel,
				Evidence:     slices.Clone(ev),
				Confidence:   evidence.Round(confidence),
			},
			floor: confidence,
		}
		return nil
	}

	state.edge.Evidence = append(state.edge.Evidence, ev...)
	state.floor = math.Max(state.floor, confidence)
	state.edge.Confidence = evidence.Round(math.Max(state.floor, evidence.Score(state.edge.Evidence)))
	return nil
}

// Node returns a copy of the node with the given id.
func (a *Assembler) Node(id string) (core.Node, bool) {
	n, ok := a.nodes[id]
	if !ok {
		return core.Node{}, false
	}
	return cloneNode(n), true
}

// Degree returns the number of edges touching the node.
func (a *Assembler) Degree(id string) int {
	count := 0
	for _, s := range a.edges {
		if s.edge.Source == id || s.edge.Target == id {
			count++
		}
	}
	return count
}

// Payload returns the assembled graph with nodes and edges sorted by id.
// The returned payload shares nothing with the assembler.
func (a *Assembler) Payload() core.Payload {
	nodeIDs := slices.Sorted(maps.Keys(a.nodes))
	edgeIDs := slices.Sorted(maps.Keys(a.edges))

	p := core.Payload{
		Nodes: make([]core.Node, 0, len(nodeIDs)),
		Edges: make([]core.Edge, 0, len(edgeIDs)),
	}
	for _, id := range nodeIDs {
		p.Nodes = append(p.Nodes, cloneNode(a.nodes[id]))
	}
	for _, id := range edgeIDs {
		e := a.edges[id].edge
		e.Evidence = slices.Clone(e.Evidence)
		p.Edges = append(p.Edges, e)
	}
	return p
}

// Stats summarizes the assembled graph for operator reporting.
type Stats struct {
	Nodes          int                   `json:"nodes"`
	Edges          int                   `json:"edges"`
	ByCategory     map[core.Category]int `json:"by_category"`
	UnresolvedRefs int                   `json:"unresolved_refs"`
}

// Stats returns node and edge counts.
func (a *Assembler) Stats() Stats {
	s := Stats{
		Nodes:          len(a.nodes),
		Edges:          len(a.edges),
		ByCategory:     make(map[core.Category]int, len(core.Categories)),
		UnresolvedRefs: a.unresolvedRefs,
	}
	for _, n := range a.nodes {
		s.ByCategory[n.Category]++
	}
	return s
}

func cloneNode(n *core.Node) core.Node {
	out := *n
	out.Metadata = maps.Clone(n.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}

// Reference kinds recorded under MetaRefKind on unresolved nodes.
const (
	RefKindStorage   = "storage"
	RefKindTransform = "transform"
)

// MetaRefKind is the unresolved-node metadata key listing, comma separated and
// sorted, the kinds of reference that missed under that spelling.
const MetaRefKind = "ref_kind"

// unresolvedNode records a miss and returns the id of its synthetic node.
func (a *Assembler) unresolvedNode(token, origin, kind string) (string, error) {
	a.unresolvedRefs++
	a.logger.Debug("unresolved reference",
		slog.String("token", token),
		slog.String("origin", origin),
		slog.String("kind", kind),
	)

	key := strings.ToLower(token)
	kinds := []string{kind}
	if node, ok := a.nodes[core.NodeID(core.CategoryUnresolved, key)]; ok {
		if prev, _ := node.Metadata[MetaRefKind].(string); prev != "" {
			kinds = append(kinds, strings.Split(prev, ",")...)
		}
	}
	slices.Sort(kinds)
	meta := map[string]any{MetaRefKind: strings.Join(slices.Compact(kinds), ",")}
	return a.UpsertNode(core.CategoryUnresolved, key, token, meta)
}
