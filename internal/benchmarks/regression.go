package benchmarks

import (
	"math"
	"time"

	"github.com/openfolio/backend/internal/contracts"
	"github.com/openfolio/backend/internal/risk"
)

// MinObservations is the default floor below which no regression
// statistic is produced. A handful of overlapping days gives numbers
// that look precise and mean nothing.
const MinObservations = 20

// Regression holds the statistics of one view-vs-series regression over
// aligned daily returns. Nil fields were not computable.
type Regression struct {
	Beta          *float64
	Alpha         *float64 // annualized
	TrackingError *float64 // annualized
	Correlation   *float64
	Observations  int
}

// AlignReturns inner-joins a view's return series with a benchmark
// series on date. Days missing from either side are dropped; nil view
// returns (chain-start days) are dropped too.
func AlignReturns(view []contracts.ReturnObservation, bench []contracts.BenchmarkReturn) (portfolio, benchmark []float64) {
	byDate := make(map[time.Time]float64, len(bench))
	for _, b := range bench {
		byDate[b.Date.Truncate(24*time.Hour)] = b.Return
	}

	for _, v := range view {
		if v.TWRReturn == nil {
			continue
		}
		b, ok := byDate[v.Date.Truncate(24*time.Hour)]
		if !ok {
			continue
		}
		portfolio = append(portfolio, *v.TWRReturn)
		benchmark = append(benchmark, b)
	}
	return portfolio, benchmark
}

// Regress computes beta, annualized alpha, annualized tracking error,
// and Pearson correlation of a portfolio return series against a
// benchmark series of equal length. Below minObs every statistic is nil
// but the observation count is still reported; values under 2 fall back
// to MinObservations.
func Regress(portfolio, benchmark []float64, minObs int) Regression {
	if minObs < 2 {
		minObs = MinObservations
	}
	n := len(portfolio)
	reg := Regression{Observations: n}
	if n != len(benchmark) || n < minObs {
		return reg
	}

	meanP := risk.Mean(portfolio)
	meanB := risk.Mean(benchmark)

	var covPB, varB, varP float64
	for i := 0; i < n; i++ {
		dp := portfolio[i] - meanP
		db := benchmark[i] - meanB
		covPB += dp * db
		varB += db * db
		varP += dp * dp
	}
	covPB /= float64(n - 1)
	varB /= float64(n - 1)
	varP /= float64(n - 1)

	// A flat benchmark has no variance to regress against
	if varB > 0 {
		beta := covPB / varB
		alpha := (meanP - beta*meanB) * risk.TradingDaysPerYear
		reg.Beta = &beta
		reg.Alpha = &alpha
	}

	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = portfolio[i] - benchmark[i]
	}
	te := risk.StdDev(diff) * math.Sqrt(risk.TradingDaysPerYear)
	reg.TrackingError = &te

	if varP > 0 && varB > 0 {
		corr := covPB / math.Sqrt(varP*varB)
		reg.Correlation = &corr
	}

	return reg
}
