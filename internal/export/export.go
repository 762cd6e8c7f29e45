// Package export serializes a lineage payload.
//
// Three artifacts are produced: graph.json for visualization front ends and
// nodes.csv / edges.csv for bulk import into a graph database. Column sets and
// ordering are a compatibility contract with downstream consumers.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Artifact file names.
const (
	GraphFile = "graph.json"
	NodesFile = "nodes.csv"
	EdgesFile = "edges.csv"
)

// Column headers of the tabular exports.
var (
	NodeColumns = []string{"id", "category", "label", "metadata"}
	EdgeColumns = []string{"source", "target", "relationship", "evidence", "confidence"}
)

// WriteJSON writes the payload as an indented JSON document.
func WriteJSON(w io.Writer, p core.Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalize(p)); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// WriteNodesCSV writes one row per node with metadata as a JSON string.
func WriteNodesCSV(w io.Writer, p core.Payload) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NodeColumns); err != nil {
		return err
	}
	for _, n := range normalize(p).Nodes {
		meta, err := marshalCell(n.Metadata)
		if err != nil {
			return fmt.Errorf("node %s metadata: %w", n.ID, err)
		}
		if err := cw.Write([]string{n.ID, string(n.Category), n.Label, meta}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes one row per edge with evidence as a JSON string.
func WriteEdgesCSV(w io.Writer, p core.Payload) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EdgeColumns); err != nil {
		return err
	}
	for _, e := range normalize(p).Edges {
		ev, err := marshalCell(e.Evidence)
		if err != nil {
			return fmt.Errorf("edge %s evidence: %w", e.ID(), err)
		}
		row := []string{
			e.Source,
			e.Target,
			string(e.Relationship),
			ev,
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalCell(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// normalize replaces nil collections so empty graphs encode as [] and {}.
// The caller's payload is not modified.
func normalize(p core.Payload) core.Payload {
	out := core.Payload{
		Nodes: append([]core.Node{}, p.Nodes...),
		Edges: append([]core.Edge{}, p.Edges...),
	}
	for i := range out.Nodes {
		if out.Nodes[i].Metadata == nil {
			out.Nodes[i].Metadata = map[string]any{}
		}
	}
	for i := range out.Edges {
		if out.Edges[i].Evidence == nil {
			out.Edges[i].Evidence = []string{}
		}
	}
	return out
}

// fingerprintKey seeds the payload hash; changing it changes every stored fingerprint.
var fingerprintKey = []byte("mclineage-graph-fingerprint-v1..")

// Fingerprint returns a stable 64-bit content hash of the payload in hex.
// Identical inputs produce identical fingerprints, so runs can be compared cheaply.
func Fingerprint(p core.Payload) (string, error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	if err := WriteJSON(h, p); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Exporter writes the artifacts to any location afs supports.
type Exporter struct {
	fs afs.Service
}

// NewExporter creates an exporter backed by the default afs service.
func NewExporter() *Exporter {
	return &Exporter{fs: afs.New()}
}

// WriteAll writes graph.json, nodes.csv and edges.csv under baseURL and
// returns the written locations.
func (x *Exporter) WriteAll(ctx context.Context, baseURL string, p core.Payload) ([]string, error) {
	writers := []struct {
		name  string
		write func(io.Writer, core.Payload) error
	}{
		{GraphFile, WriteJSON},
		{NodesFile, WriteNodesCSV},
		{EdgesFile, WriteEdgesCSV},
	}

	written := make([]string, 0, len(writers))
	for _, w := range writers {
		var buf bytes.Buffer
		if err := w.write(&buf, p); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", w.name, err)
		}
		location := url.Join(baseURL, w.name)
		if err := x.fs.Upload(ctx, location, 0o644, &buf); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", location, err)
		}
		written = append(written, location)
	}
	return written, nil
}
