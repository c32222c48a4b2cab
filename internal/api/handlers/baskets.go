package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openfolio/backend/internal/baskets"
	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// BasketHandler manages basket definitions over HTTP
type BasketHandler struct {
	engine *baskets.Engine
	repo   contracts.BasketRepository
	logger *logger.Logger
}

// NewBasketHandler creates a new basket handler
func NewBasketHandler(engine *baskets.Engine, repo contracts.BasketRepository, log *logger.Logger) *BasketHandler {
	return &BasketHandler{engine: engine, repo: repo, logger: log}
}

// Create validates and stores a basket definition
// POST /api/baskets
func (h *BasketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var basket contracts.Basket
	if err := json.NewDecoder(r.Body).Decode(&basket); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.engine.Create(r.Context(), &basket); err != nil {
		if errors.Is(err, contracts.ErrInvalidBasket) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to save basket")
		respondError(w, http.StatusInternalServerError, "Failed to save basket")
		return
	}

	respondJSON(w, http.StatusCreated, basket)
}

// List returns every basket definition
// GET /api/baskets
func (h *BasketHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list baskets")
		respondError(w, http.StatusInternalServerError, "Failed to list baskets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"baskets": defs})
}

// Get returns one basket definition
// GET /api/baskets/{code}
func (h *BasketHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	basket, err := h.repo.Get(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load basket")
		respondError(w, http.StatusInternalServerError, "Failed to load basket")
		return
	}
	if basket == nil {
		respondError(w, http.StatusNotFound, "Basket not found")
		return
	}
	respondJSON(w, http.StatusOK, basket)
}

// Rebuild regenerates a basket's synthetic series
// POST /api/baskets/{code}/rebuild?from=&to=
func (h *BasketHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	rng, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Rebuild(r.Context(), code, rng); err != nil {
		if errors.Is(err, contracts.ErrInvalidBasket) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithError(err).Error("Basket rebuild failed")
		respondError(w, http.StatusInternalServerError, "Basket rebuild failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"code":    code,
		"rebuilt": time.Now().UTC().Format(time.RFC3339),
	})
}
