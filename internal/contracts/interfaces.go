package contracts

import (
	"context"
	"time"
)

// PriceProvider fetches daily prices from one external source.
// Implementations live under internal/external.
type PriceProvider interface {
	Name() string
	FetchPrices(ctx context.Context, ticker string, rng DateRange) ([]Price, error)
}

// PositionSource supplies start-of-day position snapshots.
// Transaction rollup happens upstream; snapshots are consumed as correct.
type PositionSource interface {
	// GetPositionsAsOf returns ticker -> shares held at start of the day.
	GetPositionsAsOf(ctx context.Context, accountID string, date time.Time) (map[string]float64, error)
	ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error)
	// TransactionIDsThrough returns the identity of the transaction set
	// feeding an account's snapshots (for input hashing).
	TransactionIDsThrough(ctx context.Context, accountID string, date time.Time) ([]string, error)
}

// ViewResolver maps a view to the accounts it aggregates
type ViewResolver interface {
	AccountsForView(ctx context.Context, viewType ViewType, viewID string) ([]string, error)
}

// PriceReader provides stored price series to the engines
type PriceReader interface {
	GetCloses(ctx context.Context, ticker string, rng DateRange) ([]Price, error)
	LastPriceDate(ctx context.Context, ticker string) (time.Time, error)
}

// CoverageRepository persists provider coverage records
type CoverageRepository interface {
	Get(ctx context.Context, ticker, provider string) (*ProviderCoverageRecord, error)
	GetByTicker(ctx context.Context, ticker string) ([]*ProviderCoverageRecord, error)
	Upsert(ctx context.Context, rec *ProviderCoverageRecord) error
}

// UpdateStateRepository persists per-entity update state
type UpdateStateRepository interface {
	Get(ctx context.Context, entityType EntityType, entityID string) (*UpdateState, error)
	Upsert(ctx context.Context, state *UpdateState) error
}

// LedgerRepository persists computation records, keyed uniquely by
// (computation_type, view_type, view_id)
type LedgerRepository interface {
	Get(ctx context.Context, ct ComputationType, vt ViewType, viewID string) (*ComputationRecord, error)
	Upsert(ctx context.Context, rec *ComputationRecord) error
	ListByView(ctx context.Context, vt ViewType, viewID string) ([]*ComputationRecord, error)
}

// ReturnRepository is the sole writer of the TWR series
type ReturnRepository interface {
	SaveSeries(ctx context.Context, obs []ReturnObservation) error
	GetSeries(ctx context.Context, vt ViewType, viewID string, rng DateRange) ([]ReturnObservation, error)
	GetTrailing(ctx context.Context, vt ViewType, viewID string, n int) ([]ReturnObservation, error)
}

// RiskRepository is the sole writer of risk observations
type RiskRepository interface {
	Upsert(ctx context.Context, obs *RiskObservation) error
	Get(ctx context.Context, vt ViewType, viewID string, date time.Time) (*RiskObservation, error)
	GetSeries(ctx context.Context, vt ViewType, viewID string, rng DateRange) ([]RiskObservation, error)
}

// BenchmarkRepository stores benchmark/basket return series and the
// regression metrics computed against them
type BenchmarkRepository interface {
	SaveReturns(ctx context.Context, returns []BenchmarkReturn) error
	GetReturns(ctx context.Context, code string, rng DateRange) ([]BenchmarkReturn, error)
	LastReturnDate(ctx context.Context, code string) (time.Time, error)
	UpsertMetric(ctx context.Context, m *BenchmarkMetric) error
	GetMetrics(ctx context.Context, vt ViewType, viewID string, asOf time.Time) ([]BenchmarkMetric, error)
}

// FactorRepository stores factor series and exposures
type FactorRepository interface {
	GetFactorReturns(ctx context.Context, factorCode string, rng DateRange) ([]BenchmarkReturn, error)
	ListFactorCodes(ctx context.Context) ([]string, error)
	UpsertExposure(ctx context.Context, e *FactorExposure) error
	GetExposures(ctx context.Context, vt ViewType, viewID string, asOf time.Time) ([]FactorExposure, error)
}

// BasketRepository persists basket definitions
type BasketRepository interface {
	Save(ctx context.Context, b *Basket) error
	Get(ctx context.Context, code string) (*Basket, error)
	List(ctx context.Context) ([]*Basket, error)
}
