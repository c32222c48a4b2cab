package baskets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/logger"
)

// priceLookbackDays extends the close load window so the first day of a
// rebuild has a prior close to derive a return from
const priceLookbackDays = 7

// Engine maintains synthetic basket benchmark series. A basket's daily
// return is the weight-blended return of its constituents; the series is
// written to the benchmark tables, so downstream regressions treat
// basket codes and native index codes identically.
type Engine struct {
	prices  contracts.PriceReader
	baskets contracts.BasketRepository
	bench   contracts.BenchmarkRepository
	logger  *logger.Logger
}

// NewEngine creates a baskets engine
func NewEngine(prices contracts.PriceReader, baskets contracts.BasketRepository, bench contracts.BenchmarkRepository, log *logger.Logger) *Engine {
	return &Engine{prices: prices, baskets: baskets, bench: bench, logger: log}
}

// Create validates and persists a basket definition. Nothing is written
// when validation fails.
func (e *Engine) Create(ctx context.Context, b *contracts.Basket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	if err := e.baskets.Save(ctx, b); err != nil {
		return fmt.Errorf("save basket %s: %w", b.Code, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"code":         b.Code,
		"constituents": len(b.Constituents),
	}).Info("Basket saved")
	return nil
}

// Rebuild recomputes a basket's synthetic return series over a range
// and stores it under the basket code.
func (e *Engine) Rebuild(ctx context.Context, code string, rng contracts.DateRange) error {
	basket, err := e.baskets.Get(ctx, code)
	if err != nil {
		return fmt.Errorf("load basket %s: %w", code, err)
	}
	if basket == nil {
		return fmt.Errorf("%w: basket %s not found", contracts.ErrInvalidBasket, code)
	}

	byTicker := make(map[string]map[time.Time]float64, len(basket.Constituents))
	loadRange := contracts.DateRange{From: rng.From.AddDate(0, 0, -priceLookbackDays), To: rng.To}
	for _, c := range basket.Constituents {
		prices, err := e.prices.GetCloses(ctx, c.Symbol, loadRange)
		if err != nil {
			return fmt.Errorf("load closes for %s: %w", c.Symbol, err)
		}
		byTicker[c.Symbol] = dailyReturns(prices, rng)
	}

	returns := blendReturns(code, basket.Constituents, byTicker)
	if len(returns) == 0 {
		return nil
	}

	if err := e.bench.SaveReturns(ctx, returns); err != nil {
		return fmt.Errorf("store basket series %s: %w", code, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"code": code,
		"days": len(returns),
	}).Info("Basket series rebuilt")
	return nil
}

// dailyReturns converts a close series into date -> daily return,
// keeping only dates inside the target range
func dailyReturns(prices []contracts.Price, rng contracts.DateRange) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	prev := 0.0
	for _, p := range prices {
		if p.Close <= 0 {
			continue
		}
		if prev > 0 && rng.Contains(p.Date) {
			out[p.Date.Truncate(24*time.Hour)] = p.Close/prev - 1
		}
		prev = p.Close
	}
	return out
}

// blendReturns combines per-constituent daily returns into the basket
// series. On a day where a constituent has no return its weight simply
// contributes nothing; the remaining weights are NOT renormalized, so a
// missing member reads as a zero return at its weight rather than
// silently reshaping the basket. The level chains from 100.
func blendReturns(code string, constituents []contracts.BasketConstituent, byTicker map[string]map[time.Time]float64) []contracts.BenchmarkReturn {
	dateSet := make(map[time.Time]bool)
	for _, returns := range byTicker {
		for d := range returns {
			dateSet[d] = true
		}
	}
	if len(dateSet) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]contracts.BenchmarkReturn, 0, len(dates))
	level := 100.0
	for _, d := range dates {
		var r float64
		for _, c := range constituents {
			if cr, ok := byTicker[c.Symbol][d]; ok {
				r += c.Weight * cr
			}
		}
		level *= 1 + r
		out = append(out, contracts.BenchmarkReturn{Code: code, Date: d, Return: r, Level: level})
	}
	return out
}
