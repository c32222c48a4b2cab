package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/internal/orchestrator"
	"github.com/openfolio/backend/pkg/logger"
)

// AnalyticsHandler serves computed analytics for views
type AnalyticsHandler struct {
	returns contracts.ReturnRepository
	risk    contracts.RiskRepository
	bench   contracts.BenchmarkRepository
	factors contracts.FactorRepository
	orch    *orchestrator.Orchestrator
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	returns contracts.ReturnRepository,
	risk contracts.RiskRepository,
	bench contracts.BenchmarkRepository,
	factors contracts.FactorRepository,
	orch *orchestrator.Orchestrator,
	log *logger.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		returns: returns,
		risk:    risk,
		bench:   bench,
		factors: factors,
		orch:    orch,
		logger:  log,
	}
}

// GetReturns returns the TWR series for a view
// GET /api/views/{viewType}/{viewID}/returns?from=&to=
func (h *AnalyticsHandler) GetReturns(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.returns.GetSeries(r.Context(), vt, vars["viewID"], rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load return series")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve returns")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"view_type": vt,
		"view_id":   vars["viewID"],
		"series":    series,
	})
}

// GetRisk returns the risk series for a view
// GET /api/views/{viewType}/{viewID}/risk?from=&to=
func (h *AnalyticsHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.risk.GetSeries(r.Context(), vt, vars["viewID"], rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load risk series")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve risk metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"view_type": vt,
		"view_id":   vars["viewID"],
		"series":    series,
	})
}

// GetBenchmarks returns benchmark metrics for a view on a date
// GET /api/views/{viewType}/{viewID}/benchmarks?as_of=
func (h *AnalyticsHandler) GetBenchmarks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.bench.GetMetrics(r.Context(), vt, vars["viewID"], asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load benchmark metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve benchmark metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"view_type": vt,
		"view_id":   vars["viewID"],
		"as_of":     asOf.Format("2006-01-02"),
		"metrics":   metrics,
	})
}

// GetFactors returns factor exposures for a view on a date
// GET /api/views/{viewType}/{viewID}/factors?as_of=
func (h *AnalyticsHandler) GetFactors(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	exposures, err := h.factors.GetExposures(r.Context(), vt, vars["viewID"], asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load factor exposures")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve factor exposures")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"view_type": vt,
		"view_id":   vars["viewID"],
		"as_of":     asOf.Format("2006-01-02"),
		"exposures": exposures,
	})
}

// GetStatus reports whether each computation for a view is current
// GET /api/views/{viewType}/{viewID}/status
func (h *AnalyticsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vt, err := parseViewType(vars["viewType"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	status, err := h.orch.Status(r.Context(), vt, vars["viewID"], asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute view status")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve view status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// parseAsOf reads the optional as_of query parameter, defaulting to today
func parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", raw)
}
