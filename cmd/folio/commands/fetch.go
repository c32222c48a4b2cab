package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [tickers...]",
	Short: "Fetch missing daily prices",
	Long: `Brings the stored price series of the given tickers up to date.
Only the missing date range is requested; providers are tried in
coverage order with automatic fallback.

With --benchmarks the configured benchmark codes are synced instead.

Example:
  go run ./cmd/folio fetch AAPL MSFT
  go run ./cmd/folio fetch --benchmarks`,
	RunE: runFetch,
}

var fetchBenchmarks bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchBenchmarks, "benchmarks", false, "sync configured benchmark codes")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if !fetchBenchmarks && len(args) == 0 {
		return fmt.Errorf("pass tickers or --benchmarks")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)

	if fetchBenchmarks {
		for _, code := range a.cfg.Analytics.BenchmarkCodes {
			if err := a.syncer.Sync(ctx, code, today); err != nil {
				return fmt.Errorf("sync benchmark %s: %w", code, err)
			}
			fmt.Printf("Synced %s\n", code)
		}
		return nil
	}

	for _, ticker := range args {
		if err := a.marketData.EnsurePrices(ctx, ticker, today); err != nil {
			return fmt.Errorf("fetch %s: %w", ticker, err)
		}
		fmt.Printf("Fetched %s\n", ticker)
	}
	return nil
}
