package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/backend/internal/contracts"
)

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func historyFromReturns(returns []float64) []contracts.ReturnObservation {
	obs := make([]contracts.ReturnObservation, 0, len(returns)+1)
	index := 100.0
	obs = append(obs, contracts.ReturnObservation{
		ViewType: contracts.ViewTypeAccount, ViewID: "A1",
		Date: day(2025, 1, 1), TWRIndex: index,
	})
	for i, r := range returns {
		ret := r
		index *= 1 + r
		obs = append(obs, contracts.ReturnObservation{
			ViewType: contracts.ViewTypeAccount, ViewID: "A1",
			Date: day(2025, 1, 2).AddDate(0, 0, i), TWRReturn: &ret, TWRIndex: index,
		})
	}
	return obs
}

func TestMaxDrawdown(t *testing.T) {
	dd := MaxDrawdown([]float64{100, 110, 90, 95})
	assert.InDelta(t, (90.0-110.0)/110.0, dd, 1e-12)

	assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 105, 110}), "monotonic series has no drawdown")
	assert.Equal(t, 0.0, MaxDrawdown([]float64{100}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestDerive_VolWindows(t *testing.T) {
	// 30 returns: enough for vol_21d, not for vol_63d
	returns := make([]float64, 30)
	for i := range returns {
		returns[i] = 0.01 * math.Pow(-1, float64(i))
	}

	obs := Derive(contracts.ViewTypeAccount, "A1", day(2025, 3, 1), historyFromReturns(returns), VaRWindow)

	require.NotNil(t, obs.Vol21D)
	assert.Nil(t, obs.Vol63D, "vol_63d must be null below 63 observations")

	window := returns[len(returns)-Vol21Window:]
	want := StdDev(window) * math.Sqrt(TradingDaysPerYear)
	assert.InDelta(t, want, *obs.Vol21D, 1e-12)
}

func TestDerive_VaRRequiresFullWindow(t *testing.T) {
	returns := make([]float64, 251)
	for i := range returns {
		returns[i] = 0.001
	}

	obs := Derive(contracts.ViewTypeAccount, "A1", day(2025, 12, 31), historyFromReturns(returns), VaRWindow)
	assert.Nil(t, obs.VaR951DHist, "251 observations must not produce a VaR")
	assert.Nil(t, obs.CVaR951DHist)

	returns = append(returns, 0.001)
	obs = Derive(contracts.ViewTypeAccount, "A1", day(2025, 12, 31), historyFromReturns(returns), VaRWindow)
	require.NotNil(t, obs.VaR951DHist)
	require.NotNil(t, obs.CVaR951DHist)
}

func TestDerive_ConfiguredWindow(t *testing.T) {
	// A shorter configured window changes the VaR requirement with it;
	// the strict-window rule applies to whatever window is in force.
	returns := make([]float64, 10)
	for i := range returns {
		returns[i] = 0.001
	}

	obs := Derive(contracts.ViewTypeAccount, "A1", day(2025, 1, 20), historyFromReturns(returns), 10)
	require.NotNil(t, obs.VaR951DHist, "10 observations satisfy a 10-day window")

	obs = Derive(contracts.ViewTypeAccount, "A1", day(2025, 1, 20), historyFromReturns(returns), 11)
	assert.Nil(t, obs.VaR951DHist, "partial window stays strict")
}

func TestHistoricalVaR_KeepsSign(t *testing.T) {
	// 252 returns with a deliberate loss tail
	returns := make([]float64, 252)
	for i := range returns {
		returns[i] = 0.002
	}
	for i := 0; i < 20; i++ {
		returns[i] = -0.03
	}

	v := HistoricalVaR(returns, 0.95)
	assert.Less(t, v, 0.0, "5th percentile of a loss tail is negative")

	cv := HistoricalCVaR(returns, 0.95)
	assert.LessOrEqual(t, cv, v, "expected shortfall is at least as severe as VaR")
	assert.InDelta(t, -0.03, cv, 1e-9)
}

func TestDerive_DrawdownFromIndexSeries(t *testing.T) {
	history := []contracts.ReturnObservation{
		{ViewType: contracts.ViewTypeAccount, ViewID: "A1", Date: day(2025, 1, 1), TWRIndex: 100},
		{ViewType: contracts.ViewTypeAccount, ViewID: "A1", Date: day(2025, 1, 2), TWRIndex: 110},
		{ViewType: contracts.ViewTypeAccount, ViewID: "A1", Date: day(2025, 1, 3), TWRIndex: 90},
		{ViewType: contracts.ViewTypeAccount, ViewID: "A1", Date: day(2025, 1, 6), TWRIndex: 95},
	}

	obs := Derive(contracts.ViewTypeAccount, "A1", day(2025, 1, 6), history, VaRWindow)
	require.NotNil(t, obs.MaxDrawdown1Y)
	assert.InDelta(t, -0.1818, *obs.MaxDrawdown1Y, 1e-4)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 1.0, Percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 5.0, Percentile(sorted, 100), 1e-12)
	assert.InDelta(t, 1.2, Percentile(sorted, 5), 1e-12)
}
