package coverage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// Tracker records per-(ticker, provider) fetch outcomes and decides which
// provider to try first for each ticker. It issues no I/O of its own
// beyond its repository; provider ordering is a pure decision.
type Tracker struct {
	repo             contracts.CoverageRepository
	failureThreshold int
	logger           *logger.Logger
}

// NewTracker creates a coverage tracker. failureThreshold is the number
// of consecutive failures after which a provider is demoted to failed
// for a ticker; a single transient failure never demotes.
func NewTracker(repo contracts.CoverageRepository, failureThreshold int, log *logger.Logger) *Tracker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Tracker{
		repo:             repo,
		failureThreshold: failureThreshold,
		logger:           log,
	}
}

// RecordAttempt updates or creates the coverage record for one fetch attempt.
// Success resets the failure streak but preserves cumulative counters.
func (t *Tracker) RecordAttempt(ctx context.Context, ticker, provider string, success bool, errMsg string, recordCount int) error {
	rec, err := t.repo.Get(ctx, ticker, provider)
	if err != nil {
		return fmt.Errorf("load coverage record: %w", err)
	}

	now := time.Now()
	if rec == nil {
		rec = &contracts.ProviderCoverageRecord{
			Ticker:   ticker,
			Provider: provider,
			Status:   contracts.CoverageUnknown,
		}
	}

	if success {
		rec.Status = contracts.CoverageActive
		rec.FailureStreak = 0
		rec.LastSuccess = &now
		rec.LastError = ""
		rec.RecordsFetched += int64(recordCount)
	} else {
		rec.FailureStreak++
		rec.TotalFailures++
		rec.LastFailure = &now
		rec.LastError = errMsg

		// Demote only after a streak of failures; not_supported is terminal.
		if rec.Status != contracts.CoverageNotSupported && rec.FailureStreak >= t.failureThreshold {
			rec.Status = contracts.CoverageFailed
			t.logger.WithFields(map[string]interface{}{
				"ticker":   ticker,
				"provider": provider,
				"streak":   rec.FailureStreak,
			}).Warn("Provider demoted for ticker")
		}
	}
	rec.UpdatedAt = now

	if err := t.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save coverage record: %w", err)
	}
	return nil
}

// MarkNotSupported permanently excludes a provider for a ticker
// (e.g., the provider answered that the symbol does not exist).
func (t *Tracker) MarkNotSupported(ctx context.Context, ticker, provider, reason string) error {
	rec, err := t.repo.Get(ctx, ticker, provider)
	if err != nil {
		return fmt.Errorf("load coverage record: %w", err)
	}

	now := time.Now()
	if rec == nil {
		rec = &contracts.ProviderCoverageRecord{
			Ticker:   ticker,
			Provider: provider,
		}
	}
	rec.Status = contracts.CoverageNotSupported
	rec.LastError = reason
	rec.UpdatedAt = now

	if err := t.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save coverage record: %w", err)
	}
	return nil
}

// SelectProviders returns the candidate providers for a ticker in fetch
// order. candidates doubles as the configured priority list.
func (t *Tracker) SelectProviders(ctx context.Context, ticker string, candidates []string) ([]string, error) {
	records, err := t.repo.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load coverage records: %w", err)
	}

	byProvider := make(map[string]*contracts.ProviderCoverageRecord, len(records))
	for _, rec := range records {
		byProvider[rec.Provider] = rec
	}

	return OrderProviders(byProvider, candidates), nil
}

// OrderProviders ranks candidates by coverage history: active status
// first, then unknown (no history counts as unknown), then failed;
// within a class fewer consecutive failures win; the candidate priority
// order breaks remaining ties. not_supported providers are excluded.
// Pure function.
func OrderProviders(records map[string]*contracts.ProviderCoverageRecord, candidates []string) []string {
	type ranked struct {
		provider string
		class    int
		streak   int
		priority int
	}

	classOf := func(s contracts.CoverageStatus) int {
		switch s {
		case contracts.CoverageActive:
			return 0
		case contracts.CoverageUnknown:
			return 1
		case contracts.CoverageFailed:
			return 2
		default:
			return 3
		}
	}

	var order []ranked
	for i, provider := range candidates {
		rec, ok := records[provider]
		if !ok {
			order = append(order, ranked{provider: provider, class: 1, priority: i})
			continue
		}
		if rec.Status == contracts.CoverageNotSupported {
			continue
		}
		order = append(order, ranked{
			provider: provider,
			class:    classOf(rec.Status),
			streak:   rec.FailureStreak,
			priority: i,
		})
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].class != order[j].class {
			return order[i].class < order[j].class
		}
		if order[i].streak != order[j].streak {
			return order[i].streak < order[j].streak
		}
		return order[i].priority < order[j].priority
	})

	result := make([]string, 0, len(order))
	for _, r := range order {
		result = append(result, r.provider)
	}
	return result
}
