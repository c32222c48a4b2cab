package returns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// priceLookbackDays bounds how far back a stale close may be carried
// forward when a ticker did not trade on a valuation day.
const priceLookbackDays = 7

// Engine computes the daily time-weighted return series for a view's
// equity sleeve. The day's return is measured on start-of-day holdings:
//
//	V_start(t) = sum(shares_start(t) * close(t))
//	V_prior(t) = sum(shares_start(t) * close(t-1))
//	r(t)       = V_start(t) / V_prior(t) - 1
//
// Intraday trades never affect the day they happen; they change the
// holdings of the next day. When the prior value is zero (empty sleeve
// or first observed day) the day carries no return and the index
// reseeds at 100.
type Engine struct {
	positions contracts.PositionSource
	resolver  contracts.ViewResolver
	prices    contracts.PriceReader
	repo      contracts.ReturnRepository
	logger    *logger.Logger
}

// NewEngine creates a returns engine
func NewEngine(
	positions contracts.PositionSource,
	resolver contracts.ViewResolver,
	prices contracts.PriceReader,
	repo contracts.ReturnRepository,
	log *logger.Logger,
) *Engine {
	return &Engine{
		positions: positions,
		resolver:  resolver,
		prices:    prices,
		repo:      repo,
		logger:    log,
	}
}

// Compute builds and persists the TWR series for a view over a date
// range, returning the observations written.
func (e *Engine) Compute(ctx context.Context, vt contracts.ViewType, viewID string, rng contracts.DateRange) ([]contracts.ReturnObservation, error) {
	accounts, err := e.resolver.AccountsForView(ctx, vt, viewID)
	if err != nil {
		return nil, fmt.Errorf("resolve view %s/%s: %w", vt, viewID, err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	vals, err := e.valuations(ctx, accounts, rng)
	if err != nil {
		return nil, err
	}

	obs := chainSeries(vt, viewID, vals)
	if len(obs) == 0 {
		return nil, nil
	}

	if err := e.repo.SaveSeries(ctx, obs); err != nil {
		return nil, fmt.Errorf("save return series for %s/%s: %w", vt, viewID, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"view_type": string(vt),
		"view_id":   viewID,
		"days":      len(obs),
	}).Info("Return series computed")
	return obs, nil
}

// valuation carries one day's start and prior sleeve values
type valuation struct {
	date       time.Time
	startValue float64
	priorValue float64
}

// valuations walks the range day by day, aggregating start-of-day shares
// across the view's accounts and pricing them against today's and the
// prior trading day's closes. Days where no held ticker traded produce
// no valuation.
func (e *Engine) valuations(ctx context.Context, accounts []string, rng contracts.DateRange) ([]valuation, error) {
	series := newPriceSeries()

	var vals []valuation
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		shares := make(map[string]float64)
		for _, acct := range accounts {
			held, err := e.positions.GetPositionsAsOf(ctx, acct, d)
			if err != nil {
				return nil, fmt.Errorf("positions for %s on %s: %w", acct, d.Format("2006-01-02"), err)
			}
			for ticker, qty := range held {
				shares[ticker] += qty
			}
		}
		if len(shares) == 0 {
			continue
		}

		if err := series.ensure(ctx, e.prices, shares, rng); err != nil {
			return nil, err
		}

		traded := false
		var startValue, priorValue float64
		for ticker, qty := range shares {
			close, exact := series.closeAsOf(ticker, d)
			if close <= 0 {
				continue
			}
			if exact {
				traded = true
			}
			startValue += qty * close

			if prior, ok := series.closeBefore(ticker, d); ok {
				priorValue += qty * prior
			}
		}
		if !traded {
			// Weekend or holiday; no market print to measure against
			continue
		}

		vals = append(vals, valuation{date: d, startValue: startValue, priorValue: priorValue})
	}
	return vals, nil
}

// chainSeries converts daily valuations into return observations with a
// multiplicatively chained index. The chain seeds at 100 whenever the
// prior value is zero, so a sleeve that empties and later refills starts
// a fresh chain rather than fabricating a return across the gap.
func chainSeries(vt contracts.ViewType, viewID string, vals []valuation) []contracts.ReturnObservation {
	var obs []contracts.ReturnObservation

	index := 0.0
	for _, v := range vals {
		if v.priorValue <= 0 || index <= 0 {
			index = 100.0
			obs = append(obs, contracts.ReturnObservation{
				ViewType: vt, ViewID: viewID, Date: v.date, TWRReturn: nil, TWRIndex: index,
			})
			continue
		}

		r := v.startValue/v.priorValue - 1
		index *= 1 + r
		ret := r
		obs = append(obs, contracts.ReturnObservation{
			ViewType: vt, ViewID: viewID, Date: v.date, TWRReturn: &ret, TWRIndex: index,
		})
	}
	return obs
}

// priceSeries caches per-ticker close series for the computation range
type priceSeries struct {
	dates  map[string][]time.Time
	closes map[string]map[time.Time]float64
}

func newPriceSeries() *priceSeries {
	return &priceSeries{
		dates:  make(map[string][]time.Time),
		closes: make(map[string]map[time.Time]float64),
	}
}

// ensure loads the close series for any ticker not yet cached. The load
// range extends one lookback window before the computation range so the
// first day has a prior close.
func (p *priceSeries) ensure(ctx context.Context, reader contracts.PriceReader, shares map[string]float64, rng contracts.DateRange) error {
	for ticker := range shares {
		if _, ok := p.closes[ticker]; ok {
			continue
		}

		loadRange := contracts.DateRange{From: rng.From.AddDate(0, 0, -priceLookbackDays), To: rng.To}
		prices, err := reader.GetCloses(ctx, ticker, loadRange)
		if err != nil {
			return fmt.Errorf("load closes for %s: %w", ticker, err)
		}

		byDate := make(map[time.Time]float64, len(prices))
		dates := make([]time.Time, 0, len(prices))
		for _, pr := range prices {
			d := pr.Date.Truncate(24 * time.Hour)
			byDate[d] = pr.Close
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		p.closes[ticker] = byDate
		p.dates[ticker] = dates
	}
	return nil
}

// closeAsOf returns the most recent close at or before d, and whether
// the ticker printed exactly on d.
func (p *priceSeries) closeAsOf(ticker string, d time.Time) (float64, bool) {
	d = d.Truncate(24 * time.Hour)
	if c, ok := p.closes[ticker][d]; ok {
		return c, true
	}

	dates := p.dates[ticker]
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i].Before(d) {
			return p.closes[ticker][dates[i]], false
		}
	}
	return 0, false
}

// closeBefore returns the last close strictly before d
func (p *priceSeries) closeBefore(ticker string, d time.Time) (float64, bool) {
	d = d.Truncate(24 * time.Hour)
	dates := p.dates[ticker]
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i].Before(d) {
			return p.closes[ticker][dates[i]], true
		}
	}
	return 0, false
}
