// Package dag provides a directed data-flow view of a lineage payload.
// Edges point the way data moves (source object → transform → target object),
// which supports upstream/downstream traversal and cycle reporting.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Graph is a directed graph over lineage nodes.
type Graph struct {
	nodes    map[string]core.Node
	children map[string][]string // upstream -> downstream
	parents  map[string][]string // downstream -> upstream
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]core.Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// FlowDirection orients a lineage edge along the data flow.
// reads-from and references point at the data they consume, so they are reversed.
func FlowDirection(e core.Edge) (from, to string) {
	switch e.Relationship {
	case core.RelReadsFrom, core.RelReferences:
		return e.Target, e.Source
	default:
		return e.Source, e.Target
	}
}

// FromPayload builds the data-flow graph of a payload.
// Edges whose endpoints are missing from the payload are ignored.
func FromPayload(p core.Payload) *Graph {
	g := NewGraph()
	for _, n := range p.Nodes {
		g.AddNode(n)
	}
	for _, e := range p.Edges {
		from, to := FlowDirection(e)
		_ = g.AddEdge(from, to)
	}
	return g
}

// AddNode adds a node, replacing the data of an existing one.
func (g *Graph) AddNode(n core.Node) {
	if _, exists := g.nodes[n.ID]; !exists {
		g.children[n.ID] = []string{}
		g.parents[n.ID] = []string{}
	}
	g.nodes[n.ID] = n
}

// AddEdge adds a directed edge from upstream to downstream.
func (g *Graph) AddEdge(from, to string) error {
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("upstream node %q does not exist", from)
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("downstream node %q does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self-loop detected: %s", from)
	}

	if !slices.Contains(g.children[from], to) {
		g.children[from] = append(g.children[from], to)
	}
	if !slices.Contains(g.parents[to], from) {
		g.parents[to] = append(g.parents[to], from)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (core.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct upstream nodes.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct downstream nodes.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.children {
		count += len(children)
	}
	return count
}

// Find locates a node by id, then by key, then by label, case-insensitively.
// Ties are broken by id order.
func (g *Graph) Find(ref string) (string, bool) {
	if _, ok := g.nodes[ref]; ok {
		return ref, true
	}
	ids := g.sortedIDs()
	for _, id := range ids {
		if _, key, ok := core.SplitNodeID(id); ok && strings.EqualFold(key, ref) {
			return id, true
		}
	}
	for _, id := range ids {
		if strings.EqualFold(g.nodes[id].Label, ref) {
			return id, true
		}
	}
	return "", false
}

// Upstream returns every node data flows from into id, sorted.
func (g *Graph) Upstream(id string) []string {
	return g.walk(id, g.parents)
}

// Downstream returns every node data from id flows into, sorted.
func (g *Graph) Downstream(id string) []string {
	return g.walk(id, g.children)
}

func (g *Graph) walk(id string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var visit func(nodeID string)
	visit = func(nodeID string) {
		for _, n := range next[nodeID] {
			if !seen[n] {
				seen[n] = true
				visit(n)
			}
		}
	}
	visit(id)
	// a cycle through id would list id itself
	delete(seen, id)

	result := make([]string, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// HasCycle reports whether the graph contains a cycle, along with one cycle path.
// Transforms that read and write the same object form such cycles.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, childID := range g.children[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if onStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// Roots returns nodes nothing flows into.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.sortedIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes nothing flows out of.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.sortedIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subpayload keeps the given nodes and the edges between them, preserving order.
func Subpayload(p core.Payload, ids []string) core.Payload {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	out := core.Payload{Nodes: []core.Node{}, Edges: []core.Edge{}}
	for _, n := range p.Nodes {
		if keep[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range p.Edges {
		if keep[e.Source] && keep[e.Target] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}
