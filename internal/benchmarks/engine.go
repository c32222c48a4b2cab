package benchmarks

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// DefaultWindowDays is the trailing calendar window the regression
// aligns over when no override is configured.
const DefaultWindowDays = 365

// Engine regresses a view's return series against configured benchmark
// codes. Synthetic basket series live in the same tables as native
// benchmarks, so a basket code regresses exactly like an index.
type Engine struct {
	returns    contracts.ReturnRepository
	repo       contracts.BenchmarkRepository
	codes      []string
	windowDays int
	minObs     int
	logger     *logger.Logger
}

// NewEngine creates a benchmarks engine. codes lists the benchmark codes
// every view is measured against; windowDays and minObs fall back to the
// package defaults when non-positive. The same values feed the ledger's
// benchmark input hash, so changing them forces a recompute that
// actually reflects them.
func NewEngine(returns contracts.ReturnRepository, repo contracts.BenchmarkRepository, codes []string, windowDays, minObs int, log *logger.Logger) *Engine {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if minObs < 2 {
		minObs = MinObservations
	}
	return &Engine{returns: returns, repo: repo, codes: codes, windowDays: windowDays, minObs: minObs, logger: log}
}

// ComputeAsOf regresses a view against every configured benchmark as of
// a date and persists the metrics. A benchmark with too little overlap
// still writes its row, with null statistics and the observation count.
func (e *Engine) ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.BenchmarkMetric, error) {
	rng := contracts.DateRange{From: asOf.AddDate(0, 0, -e.windowDays), To: asOf}

	view, err := e.returns.GetSeries(ctx, vt, viewID, rng)
	if err != nil {
		return nil, fmt.Errorf("load view returns for %s/%s: %w", vt, viewID, err)
	}

	var metrics []contracts.BenchmarkMetric
	for _, code := range e.codes {
		bench, err := e.repo.GetReturns(ctx, code, rng)
		if err != nil {
			return nil, fmt.Errorf("load benchmark %s: %w", code, err)
		}

		portfolio, benchmark := AlignReturns(view, bench)
		reg := Regress(portfolio, benchmark, e.minObs)

		m := contracts.BenchmarkMetric{
			ViewType:      vt,
			ViewID:        viewID,
			BenchmarkCode: code,
			AsOfDate:      asOf,
			Beta:          reg.Beta,
			Alpha:         reg.Alpha,
			TrackingError: reg.TrackingError,
			Correlation:   reg.Correlation,
			Observations:  reg.Observations,
		}
		if err := e.repo.UpsertMetric(ctx, &m); err != nil {
			return nil, fmt.Errorf("save metric %s for %s/%s: %w", code, vt, viewID, err)
		}
		metrics = append(metrics, m)
	}

	e.logger.WithFields(map[string]interface{}{
		"view_type":  string(vt),
		"view_id":    viewID,
		"benchmarks": len(metrics),
	}).Info("Benchmark metrics computed")
	return metrics, nil
}
