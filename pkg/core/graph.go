package core

import "strings"

// =============================================================================
// Graph vocabulary
// =============================================================================

// Category tags the kind of entity a node stands for.
type Category string

// Node categories.
const (
	CategoryStorage     Category = "storage"
	CategoryTransform   Category = "transform"
	CategoryPipeline    Category = "pipeline"
	CategoryInteraction Category = "interaction"
	CategoryAsset       Category = "asset"
	CategoryUnresolved  Category = "unresolved"
)

// Categories lists every node category in export order.
var Categories = []Category{
	CategoryStorage,
	CategoryTransform,
	CategoryPipeline,
	CategoryInteraction,
	CategoryAsset,
	CategoryUnresolved,
}

// Valid reports whether c is part of the category vocabulary.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Relationship is the kind of a lineage edge.
type Relationship string

// Relationship kinds.
const (
	RelReadsFrom  Relationship = "reads-from"
	RelWritesTo   Relationship = "writes-to"
	RelExecutes   Relationship = "executes"
	RelReferences Relationship = "references"
	RelUsedBy     Relationship = "used-by"
)

// Valid reports whether r is part of the fixed relationship vocabulary.
func (r Relationship) Valid() bool {
	switch r {
	case RelReadsFrom, RelWritesTo, RelExecutes, RelReferences, RelUsedBy:
		return true
	}
	return false
}

// idSeparator joins the parts of composite identifiers.
const idSeparator = "::"

// NodeID builds the composite node identifier "<category>::<key>".
func NodeID(category Category, key string) string {
	return string(category) + idSeparator + key
}

// SplitNodeID splits a node identifier into category and key.
func SplitNodeID(id string) (Category, string, bool) {
	category, key, ok := strings.Cut(id, idSeparator)
	if !ok {
		return "", "", false
	}
	return Category(category), key, true
}

// EdgeID builds the composite edge identifier "<source>::<relationship>::<target>".
func EdgeID(source, target string, rel Relationship) string {
	return source + idSeparator + string(rel) + idSeparator + target
}

// =============================================================================
// Graph entities
// =============================================================================

// Node is the universal envelope for every graph vertex.
type Node struct {
	ID       string         `json:"id"`
	Category Category       `json:"category"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata"`
}

// Edge is a confidence-weighted lineage relationship.
type Edge struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Relationship Relationship `json:"relationship"`
	Evidence     []string     `json:"evidence"`
	Confidence   float64      `json:"confidence"`
}

// ID returns the composite edge identifier.
func (e Edge) ID() string {
	return EdgeID(e.Source, e.Target, e.Relationship)
}

// Payload is the terminal artifact handed to serialization.
// Nodes and edges are sorted by identifier.
type Payload struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (p Payload) Node(id string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given source, target and relationship.
func (p Payload) Edge(source, target string, rel Relationship) (Edge, bool) {
	for _, e := range p.Edges {
		if e.Source == source && e.Target == target && e.Relationship == rel {
			return e, true
		}
	}
	return Edge{}, false
}
