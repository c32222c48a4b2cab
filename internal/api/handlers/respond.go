package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

// Helper functions shared by all handlers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// parseViewType validates the view type path segment
func parseViewType(raw string) (contracts.ViewType, error) {
	switch contracts.ViewType(raw) {
	case contracts.ViewTypeAccount:
		return contracts.ViewTypeAccount, nil
	case contracts.ViewTypeGroup:
		return contracts.ViewTypeGroup, nil
	default:
		return "", fmt.Errorf("invalid view type %q (valid: account, group)", raw)
	}
}

// parseDateRange reads optional from/to query parameters, defaulting to
// the trailing year
func parseDateRange(r *http.Request) (contracts.DateRange, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	rng := contracts.DateRange{From: now.AddDate(-1, 0, 0), To: now}

	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return rng, fmt.Errorf("invalid from date %q (want YYYY-MM-DD)", raw)
		}
		rng.From = d
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return rng, fmt.Errorf("invalid to date %q (want YYYY-MM-DD)", raw)
		}
		rng.To = d
	}
	if rng.To.Before(rng.From) {
		return rng, fmt.Errorf("to date precedes from date")
	}
	return rng, nil
}
