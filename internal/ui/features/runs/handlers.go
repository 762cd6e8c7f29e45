package runs

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/leapstack-labs/mclineage/internal/ui/features/common"
)

const defaultLimit = 20

// Handlers serves run summaries from the store.
type Handlers struct {
	store state.Store
}

// NewHandlers creates run handlers.
func NewHandlers(store state.Store) *Handlers {
	return &Handlers{store: store}
}

// List returns recent runs, newest first. ?limit=0 returns all.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			common.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		common.StoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*state.Run{}
	}
	common.JSON(w, http.StatusOK, runs)
}

// Latest returns the most recent run.
func (h *Handlers) Latest(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		common.StoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, run)
}

// Detail returns one run by id.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.StoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, run)
}
