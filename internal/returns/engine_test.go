package returns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/pkg/config"
	"github.com/openfolio/backend/pkg/logger"
)

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func TestChainSeries_IndexChaining(t *testing.T) {
	vals := []valuation{
		{date: day(2026, 8, 3), startValue: 1000, priorValue: 0},    // chain start
		{date: day(2026, 8, 4), startValue: 1100, priorValue: 1000}, // +10%
		{date: day(2026, 8, 5), startValue: 950, priorValue: 1000},  // -5%
		{date: day(2026, 8, 6), startValue: 1020, priorValue: 1000}, // +2%
	}

	obs := chainSeries(contracts.ViewTypeAccount, "A1", vals)
	require.Len(t, obs, 4)

	assert.Nil(t, obs[0].TWRReturn, "chain start carries no return")
	assert.Equal(t, 100.0, obs[0].TWRIndex)

	require.NotNil(t, obs[1].TWRReturn)
	assert.InDelta(t, 0.10, *obs[1].TWRReturn, 1e-12)
	assert.InDelta(t, 110.0, obs[1].TWRIndex, 1e-9)

	assert.InDelta(t, -0.05, *obs[2].TWRReturn, 1e-12)
	assert.InDelta(t, 104.5, obs[2].TWRIndex, 1e-9)

	assert.InDelta(t, 0.02, *obs[3].TWRReturn, 1e-12)
	assert.InDelta(t, 106.59, obs[3].TWRIndex, 1e-9)
}

func TestChainSeries_ReseedAfterEmptySleeve(t *testing.T) {
	vals := []valuation{
		{date: day(2026, 8, 3), startValue: 1000, priorValue: 0},
		{date: day(2026, 8, 4), startValue: 1100, priorValue: 1000},
		// sleeve emptied and refilled: no prior value to chain across
		{date: day(2026, 8, 10), startValue: 500, priorValue: 0},
		{date: day(2026, 8, 11), startValue: 510, priorValue: 500},
	}

	obs := chainSeries(contracts.ViewTypeAccount, "A1", vals)
	require.Len(t, obs, 4)

	assert.Nil(t, obs[2].TWRReturn)
	assert.Equal(t, 100.0, obs[2].TWRIndex, "refill reseeds the chain")

	require.NotNil(t, obs[3].TWRReturn)
	assert.InDelta(t, 0.02, *obs[3].TWRReturn, 1e-12)
	assert.InDelta(t, 102.0, obs[3].TWRIndex, 1e-9)
}

// fakePositions serves per-day snapshots for a single account
type fakePositions struct {
	snapshots map[string]map[string]float64 // date -> ticker -> shares
}

func (f *fakePositions) GetPositionsAsOf(_ context.Context, _ string, date time.Time) (map[string]float64, error) {
	shares := f.snapshots[date.Format("2006-01-02")]
	out := make(map[string]float64, len(shares))
	for k, v := range shares {
		out[k] = v
	}
	return out, nil
}

func (f *fakePositions) ListAccountsWithActivity(_ context.Context, _ time.Time) ([]string, error) {
	return []string{"A1"}, nil
}

func (f *fakePositions) TransactionIDsThrough(_ context.Context, _ string, _ time.Time) ([]string, error) {
	return nil, nil
}

type fakeResolver struct{}

func (fakeResolver) AccountsForView(_ context.Context, _ contracts.ViewType, viewID string) ([]string, error) {
	return []string{viewID}, nil
}

type fakePrices struct {
	prices map[string][]contracts.Price
}

func (f *fakePrices) GetCloses(_ context.Context, ticker string, rng contracts.DateRange) ([]contracts.Price, error) {
	var out []contracts.Price
	for _, p := range f.prices[ticker] {
		if rng.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrices) LastPriceDate(_ context.Context, ticker string) (time.Time, error) {
	series := f.prices[ticker]
	if len(series) == 0 {
		return time.Time{}, nil
	}
	return series[len(series)-1].Date, nil
}

type memReturnRepo struct {
	saved []contracts.ReturnObservation
}

func (m *memReturnRepo) SaveSeries(_ context.Context, obs []contracts.ReturnObservation) error {
	m.saved = append(m.saved, obs...)
	return nil
}

func (m *memReturnRepo) GetSeries(_ context.Context, _ contracts.ViewType, _ string, _ contracts.DateRange) ([]contracts.ReturnObservation, error) {
	return m.saved, nil
}

func (m *memReturnRepo) GetTrailing(_ context.Context, _ contracts.ViewType, _ string, _ int) ([]contracts.ReturnObservation, error) {
	return m.saved, nil
}

func TestCompute_StartOfDayShares(t *testing.T) {
	// 10 shares held at start of Aug 4; 5 more bought intraday show up in
	// the Aug 5 snapshot. The Aug 4 return must be 10%, priced on the 10
	// shares held at the open, not on the post-trade position.
	positions := &fakePositions{snapshots: map[string]map[string]float64{
		"2026-08-03": {"AAPL": 10},
		"2026-08-04": {"AAPL": 10},
		"2026-08-05": {"AAPL": 15},
	}}
	prices := &fakePrices{prices: map[string][]contracts.Price{
		"AAPL": {
			{Ticker: "AAPL", Date: day(2026, 8, 3), Close: 10.0},
			{Ticker: "AAPL", Date: day(2026, 8, 4), Close: 11.0},
			{Ticker: "AAPL", Date: day(2026, 8, 5), Close: 11.0},
		},
	}}
	repo := &memReturnRepo{}
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})

	engine := NewEngine(positions, fakeResolver{}, prices, repo, log)
	obs, err := engine.Compute(context.Background(), contracts.ViewTypeAccount, "A1",
		contracts.DateRange{From: day(2026, 8, 3), To: day(2026, 8, 5)})
	require.NoError(t, err)
	require.Len(t, obs, 3)

	// Aug 3 has no prior close in range: chain start
	assert.Nil(t, obs[0].TWRReturn)
	assert.Equal(t, 100.0, obs[0].TWRIndex)

	require.NotNil(t, obs[1].TWRReturn)
	assert.InDelta(t, 0.10, *obs[1].TWRReturn, 1e-12, "intraday buy must not inflate the day's return")

	// Flat close on 15 shares: zero return either way
	require.NotNil(t, obs[2].TWRReturn)
	assert.InDelta(t, 0.0, *obs[2].TWRReturn, 1e-12)

	assert.Len(t, repo.saved, 3, "series persisted")
}

func TestCompute_SkipsNonTradingDays(t *testing.T) {
	positions := &fakePositions{snapshots: map[string]map[string]float64{
		"2026-08-07": {"AAPL": 10},
		"2026-08-08": {"AAPL": 10}, // Saturday
		"2026-08-09": {"AAPL": 10}, // Sunday
		"2026-08-10": {"AAPL": 10},
	}}
	prices := &fakePrices{prices: map[string][]contracts.Price{
		"AAPL": {
			{Ticker: "AAPL", Date: day(2026, 8, 7), Close: 100.0},
			{Ticker: "AAPL", Date: day(2026, 8, 10), Close: 102.0},
		},
	}}
	repo := &memReturnRepo{}
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})

	engine := NewEngine(positions, fakeResolver{}, prices, repo, log)
	obs, err := engine.Compute(context.Background(), contracts.ViewTypeAccount, "A1",
		contracts.DateRange{From: day(2026, 8, 7), To: day(2026, 8, 10)})
	require.NoError(t, err)
	require.Len(t, obs, 2, "weekend days produce no observation")

	assert.True(t, obs[0].Date.Equal(day(2026, 8, 7)))
	assert.True(t, obs[1].Date.Equal(day(2026, 8, 10)))
	require.NotNil(t, obs[1].TWRReturn)
	assert.InDelta(t, 0.02, *obs[1].TWRReturn, 1e-12, "Monday chains from Friday's close")
}
