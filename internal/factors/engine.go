package factors

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/backend/internal/benchmarks"
	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// Engine estimates a view's exposure to each configured factor series
// with independent single-factor regressions. A joint multi-factor fit
// needs a longer overlap than daily portfolios reliably have, so each
// factor is measured on its own.
type Engine struct {
	returns    contracts.ReturnRepository
	repo       contracts.FactorRepository
	windowDays int
	minObs     int
	logger     *logger.Logger
}

// NewEngine creates a factors engine. windowDays and minObs share the
// benchmark regression defaults when non-positive.
func NewEngine(returns contracts.ReturnRepository, repo contracts.FactorRepository, windowDays, minObs int, log *logger.Logger) *Engine {
	if windowDays <= 0 {
		windowDays = benchmarks.DefaultWindowDays
	}
	if minObs < 2 {
		minObs = benchmarks.MinObservations
	}
	return &Engine{returns: returns, repo: repo, windowDays: windowDays, minObs: minObs, logger: log}
}

// ComputeAsOf regresses a view against every known factor series and
// persists the exposures. Factors with too little overlap write null
// exposures with the observation count.
func (e *Engine) ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) ([]contracts.FactorExposure, error) {
	codes, err := e.repo.ListFactorCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list factor codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, nil
	}

	rng := contracts.DateRange{From: asOf.AddDate(0, 0, -e.windowDays), To: asOf}
	view, err := e.returns.GetSeries(ctx, vt, viewID, rng)
	if err != nil {
		return nil, fmt.Errorf("load view returns for %s/%s: %w", vt, viewID, err)
	}

	var exposures []contracts.FactorExposure
	for _, code := range codes {
		factor, err := e.repo.GetFactorReturns(ctx, code, rng)
		if err != nil {
			return nil, fmt.Errorf("load factor %s: %w", code, err)
		}

		portfolio, series := benchmarks.AlignReturns(view, factor)
		reg := benchmarks.Regress(portfolio, series, e.minObs)

		exp := contracts.FactorExposure{
			ViewType:     vt,
			ViewID:       viewID,
			FactorCode:   code,
			AsOfDate:     asOf,
			Exposure:     reg.Beta,
			Correlation:  reg.Correlation,
			Observations: reg.Observations,
		}
		if err := e.repo.UpsertExposure(ctx, &exp); err != nil {
			return nil, fmt.Errorf("save exposure %s for %s/%s: %w", code, vt, viewID, err)
		}
		exposures = append(exposures, exp)
	}

	e.logger.WithFields(map[string]interface{}{
		"view_type": string(vt),
		"view_id":   viewID,
		"factors":   len(exposures),
	}).Info("Factor exposures computed")
	return exposures, nil
}
