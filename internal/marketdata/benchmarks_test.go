package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/backend/internal/contracts"
)

func price(day int, close float64) contracts.Price {
	return contracts.Price{
		Ticker: "SPY",
		Date:   time.Date(2025, 8, day, 0, 0, 0, 0, time.UTC),
		Close:  close,
	}
}

func TestBuildBenchmarkReturns_FreshSeries(t *testing.T) {
	prices := []contracts.Price{price(4, 100), price(5, 110), price(6, 104.5)}

	out := buildBenchmarkReturns("SPY", prices, time.Time{}, 0)
	require.Len(t, out, 3)

	assert.Equal(t, 0.0, out[0].Return)
	assert.InDelta(t, 100.0, out[0].Level, 1e-9)

	assert.InDelta(t, 0.10, out[1].Return, 1e-9)
	assert.InDelta(t, 110.0, out[1].Level, 1e-9)

	assert.InDelta(t, -0.05, out[2].Return, 1e-9)
	assert.InDelta(t, 104.5, out[2].Level, 1e-9)
}

func TestBuildBenchmarkReturns_ContinuesExistingChain(t *testing.T) {
	lastDate := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	// Fetch overlaps the stored range so the prior close is known
	prices := []contracts.Price{price(5, 110), price(6, 121)}

	out := buildBenchmarkReturns("SPY", prices, lastDate, 110.0)
	require.Len(t, out, 1)

	assert.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), out[0].Date)
	assert.InDelta(t, 0.10, out[0].Return, 1e-9)
	assert.InDelta(t, 121.0, out[0].Level, 1e-9)
}

func TestBuildBenchmarkReturns_ChainWithoutPriorCloseJoins(t *testing.T) {
	lastDate := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	// No overlap row: the first new print becomes a join point and the
	// return resumes from the second.
	prices := []contracts.Price{price(5, 200), price(6, 210)}

	out := buildBenchmarkReturns("SPY", prices, lastDate, 150.0)
	require.Len(t, out, 1)

	assert.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), out[0].Date)
	assert.InDelta(t, 0.05, out[0].Return, 1e-9)
	assert.InDelta(t, 157.5, out[0].Level, 1e-9)
}

type memBenchRepo struct {
	returns []contracts.BenchmarkReturn
}

func (m *memBenchRepo) SaveReturns(_ context.Context, returns []contracts.BenchmarkReturn) error {
	m.returns = append(m.returns, returns...)
	return nil
}

func (m *memBenchRepo) GetReturns(_ context.Context, code string, rng contracts.DateRange) ([]contracts.BenchmarkReturn, error) {
	var out []contracts.BenchmarkReturn
	for _, r := range m.returns {
		if r.Code == code && !r.Date.Before(rng.From) && !r.Date.After(rng.To) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memBenchRepo) LastReturnDate(_ context.Context, code string) (time.Time, error) {
	var last time.Time
	for _, r := range m.returns {
		if r.Code == code && r.Date.After(last) {
			last = r.Date
		}
	}
	return last, nil
}

func (m *memBenchRepo) UpsertMetric(_ context.Context, _ *contracts.BenchmarkMetric) error {
	return nil
}

func (m *memBenchRepo) GetMetrics(_ context.Context, _ contracts.ViewType, _ string, _ time.Time) ([]contracts.BenchmarkMetric, error) {
	return nil, nil
}

func TestBenchmarkSync_NewestFirstProvider(t *testing.T) {
	// A true +10% day delivered newest first must still record +10% on
	// the later date, not an inverted return on the earlier one.
	provider := &fakeProvider{name: "marketwatch", prices: []contracts.Price{
		{Ticker: "SPY", Date: day(2026, 8, 4), Close: 110},
		{Ticker: "SPY", Date: day(2026, 8, 3), Close: 100},
	}}

	svc, _, _, _ := newTestService(provider)
	repo := &memBenchRepo{}
	syncer := NewBenchmarkSyncer(svc, repo)

	err := syncer.Sync(context.Background(), "SPY", day(2026, 8, 5))
	require.NoError(t, err)

	require.Len(t, repo.returns, 2)
	assert.Equal(t, day(2026, 8, 3), repo.returns[0].Date)
	assert.Equal(t, 0.0, repo.returns[0].Return)
	assert.InDelta(t, 100.0, repo.returns[0].Level, 1e-9)

	assert.Equal(t, day(2026, 8, 4), repo.returns[1].Date)
	assert.InDelta(t, 0.10, repo.returns[1].Return, 1e-9)
	assert.InDelta(t, 110.0, repo.returns[1].Level, 1e-9)
}

func TestBuildBenchmarkReturns_SkipsNonPositiveCloses(t *testing.T) {
	prices := []contracts.Price{price(4, 100), price(5, 0), price(6, 105)}

	out := buildBenchmarkReturns("SPY", prices, time.Time{}, 0)
	require.Len(t, out, 2)

	assert.InDelta(t, 0.05, out[1].Return, 1e-9)
}
