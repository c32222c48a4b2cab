package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// Window lengths in trading days. Each metric nulls out independently
// when its window is not fully populated; a short history never produces
// an understated number. The vol windows are fixed by the output
// columns; the VaR/history window defaults to a trading year.
const (
	Vol21Window   = 21
	Vol63Window   = 63
	VaRWindow     = 252
	varConfidence = 0.95
)

// Engine derives risk metrics from the stored TWR series. It reads
// returns, never prices; the returns engine is the only component that
// touches valuations.
type Engine struct {
	returns contracts.ReturnRepository
	repo    contracts.RiskRepository
	window  int
	logger  *logger.Logger
}

// NewEngine creates a risk engine. windowDays sets the trailing history
// and VaR window, defaulting to VaRWindow when non-positive; the same
// value feeds the ledger's risk input hash.
func NewEngine(returns contracts.ReturnRepository, repo contracts.RiskRepository, windowDays int, log *logger.Logger) *Engine {
	if windowDays <= 0 {
		windowDays = VaRWindow
	}
	return &Engine{returns: returns, repo: repo, window: windowDays, logger: log}
}

// ComputeAsOf computes and persists the risk observation for a view on
// one date, using the trailing return history through that date.
func (e *Engine) ComputeAsOf(ctx context.Context, vt contracts.ViewType, viewID string, asOf time.Time) (*contracts.RiskObservation, error) {
	history, err := e.returns.GetTrailing(ctx, vt, viewID, e.window)
	if err != nil {
		return nil, fmt.Errorf("load return history for %s/%s: %w", vt, viewID, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: no return history for %s/%s", contracts.ErrInsufficientData, vt, viewID)
	}

	obs := Derive(vt, viewID, asOf, history, e.window)
	if err := e.repo.Upsert(ctx, obs); err != nil {
		return nil, fmt.Errorf("save risk observation for %s/%s: %w", vt, viewID, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"view_type": string(vt),
		"view_id":   viewID,
		"as_of":     asOf.Format("2006-01-02"),
		"history":   len(history),
	}).Info("Risk metrics computed")
	return obs, nil
}

// Derive computes one risk observation from a trailing return history,
// oldest first. window is the VaR/CVaR observation requirement,
// defaulting to VaRWindow when non-positive. Pure; persistence happens
// in ComputeAsOf.
func Derive(vt contracts.ViewType, viewID string, asOf time.Time, history []contracts.ReturnObservation, window int) *contracts.RiskObservation {
	if window <= 0 {
		window = VaRWindow
	}
	obs := &contracts.RiskObservation{ViewType: vt, ViewID: viewID, Date: asOf}

	returns := make([]float64, 0, len(history))
	index := make([]float64, 0, len(history))
	for _, h := range history {
		if h.TWRReturn != nil {
			returns = append(returns, *h.TWRReturn)
		}
		index = append(index, h.TWRIndex)
	}

	if v := annualizedVol(returns, Vol21Window); v != nil {
		obs.Vol21D = v
	}
	if v := annualizedVol(returns, Vol63Window); v != nil {
		obs.Vol63D = v
	}

	dd := MaxDrawdown(index)
	obs.MaxDrawdown1Y = &dd

	// Strict window: a partial history would understate tail risk
	if len(returns) >= window {
		tail := returns[len(returns)-window:]
		v := HistoricalVaR(tail, varConfidence)
		cv := HistoricalCVaR(tail, varConfidence)
		obs.VaR951DHist = &v
		obs.CVaR951DHist = &cv
	}

	return obs
}

// annualizedVol computes the sample stdev of the trailing n returns
// scaled by sqrt(252). Nil when the window is not fully populated.
func annualizedVol(returns []float64, n int) *float64 {
	if len(returns) < n {
		return nil
	}
	window := returns[len(returns)-n:]
	v := StdDev(window) * math.Sqrt(TradingDaysPerYear)
	return &v
}
