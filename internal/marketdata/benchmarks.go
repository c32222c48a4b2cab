package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/contracts"
)

// BenchmarkSyncer brings native benchmark and factor series up to date.
// A benchmark code is fetched like any ticker; the close series is
// converted to daily returns and a chain-linked level starting at 100,
// stored through the benchmark tables. Synthetic basket series are
// written to the same tables by the baskets engine, which is why the
// downstream regression code never distinguishes the two.
type BenchmarkSyncer struct {
	service *Service
	repo    contracts.BenchmarkRepository
}

// NewBenchmarkSyncer creates a benchmark series syncer
func NewBenchmarkSyncer(service *Service, repo contracts.BenchmarkRepository) *BenchmarkSyncer {
	return &BenchmarkSyncer{service: service, repo: repo}
}

// Sync updates one benchmark code through today. The fetch range extends
// one trading week back past the missing range so the first new return
// has a prior close to chain from.
func (b *BenchmarkSyncer) Sync(ctx context.Context, code string, today time.Time) error {
	rng, err := b.service.state.FetchRange(ctx, contracts.EntityBenchmark, code, today)
	if err != nil {
		return fmt.Errorf("fetch range for benchmark %s: %w", code, err)
	}
	if rng.IsZero() {
		return nil
	}

	fetchRange := contracts.DateRange{From: rng.From.AddDate(0, 0, -7), To: rng.To}
	prices, provider, err := b.service.fetchWithFallback(ctx, code, fetchRange)
	if err != nil {
		return fmt.Errorf("fetch benchmark %s: %w", code, err)
	}
	if len(prices) == 0 {
		return b.service.state.MarkUpdated(ctx, contracts.EntityBenchmark, code, rng.To, provider)
	}

	// Resume the chain from the last stored level, if any
	lastDate, lastLevel, err := b.lastStoredLevel(ctx, code)
	if err != nil {
		return err
	}

	returns := buildBenchmarkReturns(code, prices, lastDate, lastLevel)
	if len(returns) > 0 {
		if err := b.repo.SaveReturns(ctx, returns); err != nil {
			return fmt.Errorf("store benchmark returns for %s: %w", code, err)
		}
	}

	through := prices[len(prices)-1].Date
	if err := b.service.state.MarkUpdated(ctx, contracts.EntityBenchmark, code, through, provider); err != nil {
		return fmt.Errorf("advance benchmark state for %s: %w", code, err)
	}
	return nil
}

// lastStoredLevel returns the date and level of the newest stored
// benchmark return, or zero values for a fresh series.
func (b *BenchmarkSyncer) lastStoredLevel(ctx context.Context, code string) (time.Time, float64, error) {
	lastDate, err := b.repo.LastReturnDate(ctx, code)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("last benchmark date for %s: %w", code, err)
	}
	if lastDate.IsZero() {
		return time.Time{}, 0, nil
	}

	stored, err := b.repo.GetReturns(ctx, code, contracts.DateRange{From: lastDate, To: lastDate})
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("load last benchmark level for %s: %w", code, err)
	}
	if len(stored) == 0 {
		return time.Time{}, 0, nil
	}
	return lastDate, stored[len(stored)-1].Level, nil
}

// buildBenchmarkReturns converts a close series into chain-linked return
// observations, continuing an existing chain when lastDate/lastLevel are
// set. prices must be oldest first; fetchWithFallback normalizes
// provider output before it reaches here. The first observation of a
// fresh series seeds the level at 100 with no return, mirroring the
// portfolio index convention.
func buildBenchmarkReturns(code string, prices []contracts.Price, lastDate time.Time, lastLevel float64) []contracts.BenchmarkReturn {
	var out []contracts.BenchmarkReturn

	prevClose := 0.0
	level := lastLevel
	haveChain := !lastDate.IsZero() && lastLevel > 0

	for _, p := range prices {
		if !lastDate.IsZero() && !p.Date.After(lastDate) {
			// Overlap fetched only to recover the prior close
			prevClose = p.Close
			continue
		}
		if p.Close <= 0 {
			continue
		}

		if prevClose <= 0 {
			if haveChain {
				// Chain exists but the prior close is unknown; cannot
				// derive a return for this day, keep it as a join point.
				prevClose = p.Close
				continue
			}
			// Fresh series: seed at 100
			level = 100.0
			out = append(out, contracts.BenchmarkReturn{
				Code: code, Date: p.Date, Return: 0, Level: level,
			})
			prevClose = p.Close
			haveChain = true
			continue
		}

		r := p.Close/prevClose - 1
		level *= 1 + r
		out = append(out, contracts.BenchmarkReturn{
			Code: code, Date: p.Date, Return: r, Level: level,
		})
		prevClose = p.Close
	}

	return out
}
