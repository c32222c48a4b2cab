package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfolio/backend/internal/api"
	"github.com/openfolio/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                                      - Health check
  GET  /api/views/{type}/{id}/returns               - TWR series
  GET  /api/views/{type}/{id}/risk                  - Risk metrics
  GET  /api/views/{type}/{id}/benchmarks            - Benchmark metrics
  GET  /api/views/{type}/{id}/factors               - Factor exposures
  GET  /api/views/{type}/{id}/status                - Computation currency
  POST /api/views/{type}/{id}/recompute             - Recompute one view
  POST /api/recompute                               - Recompute all accounts
  POST /api/baskets                                 - Create a basket
  GET  /api/baskets                                 - List baskets
  POST /api/baskets/{code}/rebuild                  - Rebuild a basket series

Example:
  go run ./cmd/folio api
  go run ./cmd/folio api --port 8086`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	analyticsHandler := handlers.NewAnalyticsHandler(a.returnRepo, a.riskRepo, a.benchRepo, a.factorRepo, a.orch, a.log)
	recomputeHandler := handlers.NewRecomputeHandler(a.orch, a.log)
	basketHandler := handlers.NewBasketHandler(a.basketEng, a.basketRepo, a.log)

	router := api.NewRouter(analyticsHandler, recomputeHandler, basketHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
