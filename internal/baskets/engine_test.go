package baskets

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

func TestBlendReturns_WeightedBlend(t *testing.T) {
	d1 := day(2026, 8, 4)
	byTicker := map[string]map[time.Time]float64{
		"AAPL": {d1: 0.02},
		"MSFT": {d1: -0.01},
	}
	constituents := []contracts.BasketConstituent{
		{Symbol: "AAPL", Weight: 0.6},
		{Symbol: "MSFT", Weight: 0.4},
	}

	out := blendReturns("TECH", constituents, byTicker)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.6*0.02+0.4*-0.01, out[0].Return, 1e-12)
	assert.InDelta(t, 100*(1+0.008), out[0].Level, 1e-9)
}

func TestBlendReturns_MissingConstituentNotRenormalized(t *testing.T) {
	d1 := day(2026, 8, 4)
	// MSFT has no print: its 40% contributes zero, AAPL's 60% is NOT
	// scaled up to fill the gap.
	byTicker := map[string]map[time.Time]float64{
		"AAPL": {d1: 0.02},
		"MSFT": {},
	}
	constituents := []contracts.BasketConstituent{
		{Symbol: "AAPL", Weight: 0.6},
		{Symbol: "MSFT", Weight: 0.4},
	}

	out := blendReturns("TECH", constituents, byTicker)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.6*0.02, out[0].Return, 1e-12)
}

func TestBlendReturns_LevelChains(t *testing.T) {
	d1, d2 := day(2026, 8, 4), day(2026, 8, 5)
	byTicker := map[string]map[time.Time]float64{
		"AAPL": {d1: 0.10, d2: -0.05},
	}
	constituents := []contracts.BasketConstituent{{Symbol: "AAPL", Weight: 1.0}}

	out := blendReturns("SOLO", constituents, byTicker)
	require.Len(t, out, 2)
	assert.InDelta(t, 110.0, out[0].Level, 1e-9)
	assert.InDelta(t, 104.5, out[1].Level, 1e-9)
}

func TestDailyReturns(t *testing.T) {
	rng := contracts.DateRange{From: day(2026, 8, 4), To: day(2026, 8, 5)}
	prices := []contracts.Price{
		{Date: day(2026, 8, 3), Close: 100},
		{Date: day(2026, 8, 4), Close: 110},
		{Date: day(2026, 8, 5), Close: 104.5},
	}

	out := dailyReturns(prices, rng)
	require.Len(t, out, 2, "lookback close feeds the first return but gets no entry")
	assert.InDelta(t, 0.10, out[day(2026, 8, 4)], 1e-12)
	assert.InDelta(t, -0.05, out[day(2026, 8, 5)], 1e-12)
}

type memBasketRepo struct {
	baskets map[string]*contracts.Basket
}

func (m *memBasketRepo) Save(_ context.Context, b *contracts.Basket) error {
	cp := *b
	m.baskets[b.Code] = &cp
	return nil
}

func (m *memBasketRepo) Get(_ context.Context, code string) (*contracts.Basket, error) {
	b, ok := m.baskets[code]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memBasketRepo) List(_ context.Context) ([]*contracts.Basket, error) {
	var out []*contracts.Basket
	for _, b := range m.baskets {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func TestCreate_RejectsBadWeightsBeforePersisting(t *testing.T) {
	repo := &memBasketRepo{baskets: make(map[string]*contracts.Basket)}
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	engine := NewEngine(nil, repo, nil, log)

	err := engine.Create(context.Background(), &contracts.Basket{
		Code: "BAD",
		Constituents: []contracts.BasketConstituent{
			{Symbol: "AAPL", Weight: 0.5},
			{Symbol: "MSFT", Weight: 0.47},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInvalidBasket)
	assert.Empty(t, repo.baskets, "nothing persisted on validation failure")

	err = engine.Create(context.Background(), &contracts.Basket{
		Code: "OK",
		Constituents: []contracts.BasketConstituent{
			{Symbol: "AAPL", Weight: 0.5},
			{Symbol: "MSFT", Weight: 0.5},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, repo.baskets, "OK")
}
