package score

import (
	"math"
	"sort"
)

// percentileRank places x on a ~0..1 scale against the cohort thresholds,
// where higher means more expensive relative to recent market conditions.
// The curve is deliberately asymmetric: cheap transactions cluster in
// [0.3,0.5] and anything past p95 saturates at 0.98. Missing thresholds are
// synthesized from the previous one so a sparse cohort still ranks sanely.
func percentileRank(x float64, p50, p80, p95 *float64) float64 {
	if p50 == nil {
		return 0.5
	}
	if x <= *p50 {
		return 0.3 + 0.2*(x/math.Max(*p50, 1))
	}
	b80 := 1.2 * *p50
	if p80 != nil {
		b80 = *p80
	}
	if x <= b80 {
		return 0.5 + 0.3*safeDiv(x-*p50, b80-*p50, 0)
	}
	b95 := 1.3 * b80
	if p95 != nil {
		b95 = *p95
	}
	if x <= b95 {
		return 0.8 + 0.15*safeDiv(x-b80, b95-b80, 0)
	}
	return 0.98
}

// rankAgainst ranks x against a percentile map, tolerating missing keys.
func rankAgainst(x float64, p Percentiles) float64 {
	var p50, p80, p95 *float64
	if v, ok := p[50]; ok {
		p50 = &v
	}
	if v, ok := p[80]; ok {
		p80 = &v
	}
	if v, ok := p[95]; ok {
		p95 = &v
	}
	return percentileRank(x, p50, p80, p95)
}

// ComputePercentiles derives the 50/80/95 thresholds from a sample using
// linear interpolation between order statistics. An empty sample yields an
// empty map, which downstream code treats as "fallback mode" rather than a
// population of zeros.
func ComputePercentiles(values []float64) Percentiles {
	out := Percentiles{}
	n := len(values)
	if n == 0 {
		return out
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	for _, p := range []int{50, 80, 95} {
		rank := float64(n-1) * float64(p) / 100
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		if hi >= n {
			hi = n - 1
		}
		v := sorted[lo]
		if hi > lo {
			frac := rank - float64(lo)
			v = sorted[lo] + (sorted[hi]-sorted[lo])*frac
		}
		out[p] = v
	}
	return out
}
