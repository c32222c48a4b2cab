package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openfolio/backend/internal/api/handlers"
	"github.com/openfolio/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	analyticsHandler *handlers.AnalyticsHandler,
	recomputeHandler *handlers.RecomputeHandler,
	basketHandler *handlers.BasketHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Analytics reads
	api.HandleFunc("/views/{viewType}/{viewID}/returns", analyticsHandler.GetReturns).Methods("GET")
	api.HandleFunc("/views/{viewType}/{viewID}/risk", analyticsHandler.GetRisk).Methods("GET")
	api.HandleFunc("/views/{viewType}/{viewID}/benchmarks", analyticsHandler.GetBenchmarks).Methods("GET")
	api.HandleFunc("/views/{viewType}/{viewID}/factors", analyticsHandler.GetFactors).Methods("GET")
	api.HandleFunc("/views/{viewType}/{viewID}/status", analyticsHandler.GetStatus).Methods("GET")

	// Recompute triggers
	api.HandleFunc("/views/{viewType}/{viewID}/recompute", recomputeHandler.RecomputeView).Methods("POST")
	api.HandleFunc("/recompute", recomputeHandler.RecomputeAll).Methods("POST")

	// Baskets
	api.HandleFunc("/baskets", basketHandler.Create).Methods("POST")
	api.HandleFunc("/baskets", basketHandler.List).Methods("GET")
	api.HandleFunc("/baskets/{code}", basketHandler.Get).Methods("GET")
	api.HandleFunc("/baskets/{code}/rebuild", basketHandler.Rebuild).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "folio-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
