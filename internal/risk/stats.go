package risk

import (
	"math"
	"sort"
)

// TradingDaysPerYear is the annualization base for daily metrics
const TradingDaysPerYear = 252.0

// Mean computes the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev computes the sample standard deviation (n-1 denominator)
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Percentile computes the p-th percentile of a sorted ascending slice
// with linear interpolation between ranks
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// SortedCopy returns an ascending copy of values
func SortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// MaxDrawdown computes the deepest peak-to-trough decline of an index
// series: min over t of (index[t] - runningMax[t]) / runningMax[t].
// Zero or negative for any non-empty series.
func MaxDrawdown(index []float64) float64 {
	if len(index) == 0 {
		return 0
	}

	runningMax := index[0]
	worst := 0.0
	for _, v := range index {
		if v > runningMax {
			runningMax = v
		}
		if runningMax > 0 {
			dd := (v - runningMax) / runningMax
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// HistoricalVaR computes the historical 1-day VaR at the given
// confidence as a percentile of the return distribution. The result
// keeps the return's sign: a 5th-percentile loss comes back negative.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	sorted := SortedCopy(returns)
	return Percentile(sorted, (1-confidence)*100)
}

// HistoricalCVaR computes the expected shortfall: the mean of returns at
// or below the VaR threshold
func HistoricalCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	threshold := HistoricalVaR(returns, confidence)

	var sum float64
	var count int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold
	}
	return sum / float64(count)
}
