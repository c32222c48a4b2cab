package contracts

import (
	"time"
)

// ViewType identifies the kind of entity analytics are computed for
type ViewType string

const (
	ViewTypeAccount ViewType = "account"
	ViewTypeGroup   ViewType = "group"
)

// ComputationType identifies a stage of the analytics pipeline
type ComputationType string

const (
	ComputationPositions  ComputationType = "positions"
	ComputationReturns    ComputationType = "returns"
	ComputationRisk       ComputationType = "risk"
	ComputationBenchmarks ComputationType = "benchmarks"
	ComputationFactors    ComputationType = "factors"
)

// AllComputationTypes in dependency order
var AllComputationTypes = []ComputationType{
	ComputationPositions,
	ComputationReturns,
	ComputationRisk,
	ComputationBenchmarks,
	ComputationFactors,
}

// ComputationStatus is the lifecycle state of a computation unit
type ComputationStatus string

const (
	StatusPending   ComputationStatus = "pending"
	StatusRunning   ComputationStatus = "running"
	StatusCompleted ComputationStatus = "completed"
	StatusFailed    ComputationStatus = "failed"
	StatusSkipped   ComputationStatus = "skipped"
)

// CoverageStatus is the per-(ticker, provider) reliability state
type CoverageStatus string

const (
	CoverageActive       CoverageStatus = "active"
	CoverageFailed       CoverageStatus = "failed"
	CoverageNotSupported CoverageStatus = "not_supported"
	CoverageUnknown      CoverageStatus = "unknown"
)

// EntityType identifies what an UpdateState row tracks
type EntityType string

const (
	EntitySecurityPrices EntityType = "security_prices"
	EntityBenchmark      EntityType = "benchmark"
	EntityFactorSeries   EntityType = "factor_series"
)

// DateRange is an inclusive date interval
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether the range is empty
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether d falls inside the range (inclusive)
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Price is a daily closing price for a ticker
type Price struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PositionSnapshot is the start-of-day holdings of one account.
// Produced upstream by transaction rollup; consumed as correct input.
type PositionSnapshot struct {
	AccountID string             `json:"account_id"`
	Date      time.Time          `json:"date"`
	Shares    map[string]float64 `json:"shares"` // security ticker -> shares held at start of day
}

// ProviderCoverageRecord is the persisted reliability history of a
// provider for a specific ticker. Never deleted; it is historical signal.
type ProviderCoverageRecord struct {
	Ticker         string         `json:"ticker"`
	Provider       string         `json:"provider"`
	Status         CoverageStatus `json:"status"`
	LastSuccess    *time.Time     `json:"last_success,omitempty"`
	LastFailure    *time.Time     `json:"last_failure,omitempty"`
	FailureStreak  int            `json:"failure_streak"`
	TotalFailures  int            `json:"total_failures"`
	LastError      string         `json:"last_error,omitempty"`
	RecordsFetched int64          `json:"records_fetched"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// UpdateState tracks how current a data series is, driving incremental
// fetch ranges.
type UpdateState struct {
	EntityType        EntityType `json:"entity_type"`
	EntityID          string     `json:"entity_id"`
	LastUpdateDate    time.Time  `json:"last_update_date"`
	LastUpdateTime    time.Time  `json:"last_update_time"`
	PreferredProvider string     `json:"preferred_provider,omitempty"`
	UpdateFrequency   string     `json:"update_frequency,omitempty"`
	NeedsBackfill     bool       `json:"needs_backfill"`
	BackfillStart     time.Time  `json:"backfill_start,omitempty"`
}

// ComputationRecord is one row of the dependency ledger, unique per
// (computation_type, view_type, view_id).
type ComputationRecord struct {
	ComputationType ComputationType   `json:"computation_type"`
	ViewType        ViewType          `json:"view_type"`
	ViewID          string            `json:"view_id"`
	InputHash       string            `json:"input_hash"`
	OutputHash      string            `json:"output_hash,omitempty"`
	Status          ComputationStatus `json:"status"`
	LastComputed    time.Time         `json:"last_computed"`
	DurationMs      int64             `json:"duration_ms"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}

// ReturnObservation is one day of the TWR series for a view.
// Index chains multiplicatively from 100 on the first observed date.
type ReturnObservation struct {
	ViewType  ViewType  `json:"view_type"`
	ViewID    string    `json:"view_id"`
	Date      time.Time `json:"date"`
	TWRReturn *float64  `json:"twr_return,omitempty"` // nil on chain-start days
	TWRIndex  float64   `json:"twr_index"`
}

// RiskObservation is one day of risk metrics for a view. Each metric is
// independently nullable when its window requirement is not met.
type RiskObservation struct {
	ViewType      ViewType  `json:"view_type"`
	ViewID        string    `json:"view_id"`
	Date          time.Time `json:"date"`
	Vol21D        *float64  `json:"vol_21d,omitempty"`
	Vol63D        *float64  `json:"vol_63d,omitempty"`
	MaxDrawdown1Y *float64  `json:"max_drawdown_1y,omitempty"`
	VaR951DHist   *float64  `json:"var_95_1d_hist,omitempty"`
	CVaR951DHist  *float64  `json:"cvar_95_1d_hist,omitempty"`
}

// BenchmarkMetric is the regression result of a view against one
// benchmark code over a trailing window of common dates.
type BenchmarkMetric struct {
	ViewType      ViewType  `json:"view_type"`
	ViewID        string    `json:"view_id"`
	BenchmarkCode string    `json:"benchmark_code"`
	AsOfDate      time.Time `json:"as_of_date"`
	Beta          *float64  `json:"beta,omitempty"`
	Alpha         *float64  `json:"alpha,omitempty"` // annualized
	TrackingError *float64  `json:"tracking_error,omitempty"` // annualized
	Correlation   *float64  `json:"correlation,omitempty"`
	Observations  int       `json:"observations"`
}

// FactorExposure is the per-factor regression result for a view
type FactorExposure struct {
	ViewType     ViewType  `json:"view_type"`
	ViewID       string    `json:"view_id"`
	FactorCode   string    `json:"factor_code"`
	AsOfDate     time.Time `json:"as_of_date"`
	Exposure     *float64  `json:"exposure,omitempty"` // beta to the factor
	Correlation  *float64  `json:"correlation,omitempty"`
	Observations int       `json:"observations"`
}

// BenchmarkReturn is one day of a benchmark (or synthetic basket) series
type BenchmarkReturn struct {
	Code   string    `json:"code"`
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
	Level  float64   `json:"level"` // chain-linked index, 100 at series start
}
