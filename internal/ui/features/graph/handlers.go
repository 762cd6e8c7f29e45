package graph

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/dag"
	"github.com/leapstack-labs/mclineage/internal/export"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/leapstack-labs/mclineage/internal/ui/features/common"
	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Handlers serves graph payloads of stored runs.
type Handlers struct {
	store state.Store
}

// NewHandlers creates graph handlers.
func NewHandlers(store state.Store) *Handlers {
	return &Handlers{store: store}
}

// LineageResponse is the body of a lineage query.
type LineageResponse struct {
	Root      string       `json:"root"`
	Direction string       `json:"direction"`
	Nodes     []string     `json:"nodes"`
	Graph     core.Payload `json:"graph"`
}

// payload loads the graph of ?run=<id>, or of the latest run.
func (h *Handlers) payload(ctx context.Context, r *http.Request) (core.Payload, error) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		latest, err := h.store.LatestRun(ctx)
		if err != nil {
			return core.Payload{}, err
		}
		runID = latest.ID
	}
	return h.store.LoadPayload(ctx, runID)
}

// Graph returns the full payload.
func (h *Handlers) Graph(w http.ResponseWriter, r *http.Request) {
	p, err := h.payload(r.Context(), r)
	if err != nil {
		common.StoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, p); err != nil {
		common.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// NodesCSV returns the node table.
func (h *Handlers) NodesCSV(w http.ResponseWriter, r *http.Request) {
	h.csv(w, r, export.NodesFile, export.WriteNodesCSV)
}

// EdgesCSV returns the edge table.
func (h *Handlers) EdgesCSV(w http.ResponseWriter, r *http.Request) {
	h.csv(w, r, export.EdgesFile, export.WriteEdgesCSV)
}

func (h *Handlers) csv(w http.ResponseWriter, r *http.Request, name string, write func(io.Writer, core.Payload) error) {
	p, err := h.payload(r.Context(), r)
	if err != nil {
		common.StoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	if err := write(w, p); err != nil {
		common.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// Lineage returns the upstream or downstream closure of one node.
// ?direction= is upstream, downstream (default) or both.
func (h *Handlers) Lineage(w http.ResponseWriter, r *http.Request) {
	ref, err := url.PathUnescape(chi.URLParam(r, "ref"))
	if err != nil {
		common.Error(w, http.StatusBadRequest, "invalid node reference")
		return
	}
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "downstream"
	}
	if direction != "upstream" && direction != "downstream" && direction != "both" {
		common.Error(w, http.StatusBadRequest, "direction must be upstream, downstream or both")
		return
	}

	p, err := h.payload(r.Context(), r)
	if err != nil {
		common.StoreError(w, err)
		return
	}

	g := dag.FromPayload(p)
	root, ok := g.Find(ref)
	if !ok {
		common.Error(w, http.StatusNotFound, "node not found: "+ref)
		return
	}

	var ids []string
	if direction != "downstream" {
		ids = append(ids, g.Upstream(root)...)
	}
	if direction != "upstream" {
		ids = append(ids, g.Downstream(root)...)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if ids == nil {
		ids = []string{}
	}

	common.JSON(w, http.StatusOK, LineageResponse{
		Root:      root,
		Direction: direction,
		Nodes:     ids,
		Graph:     dag.Subpayload(p, append([]string{root}, ids...)),
	})
}
