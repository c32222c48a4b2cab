package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/internal/coverage"
	"github.com/openfolio/backend/internal/updatestate"
	"github.com/openfolio/backend/pkg/logger"
	"github.com/openfolio/backend/pkg/redis"
)

// PriceWriter is the subset of the price store the service writes through
type PriceWriter interface {
	SaveBatch(ctx context.Context, prices []contracts.Price) error
}

// Service orchestrates incremental price fetching: it asks the
// update-state tracker what range is missing, lets the coverage tracker
// order providers, and records every attempt's outcome. Provider calls
// happen outside any computation lock; results land in storage first and
// recomputation is triggered afterwards.
type Service struct {
	providers map[string]contracts.PriceProvider
	priority  []string
	coverage  *coverage.Tracker
	state     *updatestate.Tracker
	store     PriceWriter
	cache     *redis.Cache
	logger    *logger.Logger
}

// NewService creates a market-data service. priority lists provider
// names in configured preference order; each must exist in providers.
func NewService(
	providers []contracts.PriceProvider,
	priority []string,
	coverageTracker *coverage.Tracker,
	stateTracker *updatestate.Tracker,
	store PriceWriter,
	cache *redis.Cache,
	log *logger.Logger,
) *Service {
	byName := make(map[string]contracts.PriceProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers: byName,
		priority:  priority,
		coverage:  coverageTracker,
		state:     stateTracker,
		store:     store,
		cache:     cache,
		logger:    log,
	}
}

// EnsurePrices brings a ticker's stored price series up to today,
// fetching only the missing range. Already-current tickers are a no-op.
func (s *Service) EnsurePrices(ctx context.Context, ticker string, today time.Time) error {
	rng, err := s.state.FetchRange(ctx, contracts.EntitySecurityPrices, ticker, today)
	if err != nil {
		return fmt.Errorf("fetch range for %s: %w", ticker, err)
	}
	if rng.IsZero() {
		return nil
	}

	prices, provider, err := s.fetchWithFallback(ctx, ticker, rng)
	if err != nil {
		// Update state stays untouched: the range is still unfetched
		return fmt.Errorf("fetch prices for %s: %w", ticker, err)
	}
	if len(prices) == 0 {
		// Nothing traded in the range (holiday span); state advances so
		// the same empty range is not refetched every pass.
		return s.state.MarkUpdated(ctx, contracts.EntitySecurityPrices, ticker, rng.To, provider)
	}

	if err := s.store.SaveBatch(ctx, prices); err != nil {
		return fmt.Errorf("store prices for %s: %w", ticker, err)
	}

	last := prices[len(prices)-1]
	if err := s.state.MarkUpdated(ctx, contracts.EntitySecurityPrices, ticker, last.Date, provider); err != nil {
		return fmt.Errorf("advance update state for %s: %w", ticker, err)
	}

	// Cache the latest close for quote lookups; advisory only
	if s.cache != nil {
		_ = s.cache.Set(ctx, redis.LatestPriceKey(ticker), last, redis.TTLDaily)
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"provider": provider,
		"count":    len(prices),
		"through":  last.Date.Format("2006-01-02"),
	}).Info("Price series updated")
	return nil
}

// fetchWithFallback tries providers in coverage order until one succeeds.
// Every attempt is recorded; not_supported answers permanently exclude
// the provider for the ticker.
func (s *Service) fetchWithFallback(ctx context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, string, error) {
	order, err := s.coverage.SelectProviders(ctx, ticker, s.priority)
	if err != nil {
		return nil, "", err
	}
	if len(order) == 0 {
		return nil, "", fmt.Errorf("%w: all providers excluded for %s", contracts.ErrNoProvider, ticker)
	}

	var lastErr error
	for _, name := range order {
		provider, ok := s.providers[name]
		if !ok {
			continue
		}

		prices, err := provider.FetchPrices(ctx, ticker, rng)
		if err == nil {
			if recErr := s.coverage.RecordAttempt(ctx, ticker, name, true, "", len(prices)); recErr != nil {
				return nil, "", recErr
			}
			// Providers make no ordering promise; scrape pages arrive
			// newest-first. Everything downstream (chain-linking, update
			// state advance) requires oldest-first.
			sort.Slice(prices, func(i, j int) bool {
				return prices[i].Date.Before(prices[j].Date)
			})
			return prices, name, nil
		}

		if errors.Is(err, contracts.ErrSymbolNotSupported) {
			if recErr := s.coverage.MarkNotSupported(ctx, ticker, name, err.Error()); recErr != nil {
				return nil, "", recErr
			}
			lastErr = err
			continue
		}

		if recErr := s.coverage.RecordAttempt(ctx, ticker, name, false, err.Error(), 0); recErr != nil {
			return nil, "", recErr
		}
		lastErr = err

		s.logger.WithFields(map[string]interface{}{
			"ticker":   ticker,
			"provider": name,
			"error":    err.Error(),
		}).Warn("Provider fetch failed, falling back")
	}

	return nil, "", fmt.Errorf("%w: %v", contracts.ErrNoProvider, lastErr)
}
