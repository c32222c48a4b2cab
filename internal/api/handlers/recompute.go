package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openfolio/backend/internal/orchestrator"
	"github.com/openfolio/backend/pkg/logger"
)

// RecomputeHandler triggers analytics recomputation over HTTP
type RecomputeHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewRecomputeHandler creates a new recompute handler
func NewRecomputeHandler(orch *orchestrator.Orchestrator, log *logger.Logger) *RecomputeHandler {
	return &RecomputeHandler{orch: orch, logger: log}
}

// RecomputeView runs the pipeline for one view synchronously
// POST /api/views/{viewType}/{viewID}/recompute
func (h *RecomputeHandler) RecomputeView(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	result, err := h.orch.RecomputeView(r.Context(), vt, vars["viewID"], asOf)
	if err != nil {
		h.logger.WithError(err).Error("Recompute failed")
		respondError(w, http.StatusInternalServerError, "Recompute failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RecomputeAll runs the pipeline for every active account
// POST /api/recompute
func (h *RecomputeHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	views, err := h.orch.AccountViews(ctx, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list views")
		respondError(w, http.StatusInternalServerError, "Failed to list views")
		return
	}

	batch, err := h.orch.RecomputeBatch(ctx, views, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Batch recompute failed")
		respondError(w, http.StatusInternalServerError, "Batch recompute failed")
		return
	}

	respondJSON(w, http.StatusOK, batch)
}
