package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"mf-returns-service/internal/nav"
)

// cagrPct annualizes growth from start to end over years, as a percentage.
func cagrPct(start, end, years float64) float64 {
	return (math.Pow(end/start, 1.0/years) - 1.0) * 100.0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// maxDrawdownPct is the worst peak-to-trough decline inside window, as a
// non-positive percentage.
func maxDrawdownPct(window []nav.Observation) float64 {
	if len(window) == 0 {
		return 0
	}
	peak := window[0].NAV
	worst := 0.0
	for _, p := range window {
		if p.NAV > peak {
			peak = p.NAV
		}
		if peak <= 0 {
			continue
		}
		dd := (p.NAV/peak - 1.0) * 100.0
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

type summary struct {
	count                 int
	mean, min, max        float64
	median, p25, p75, std float64
}

// summarize expects a non-empty sample.
func summarize(values []float64) summary {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	// keep the mean inside [min, max] despite float accumulation error
	mean = math.Max(sorted[0], math.Min(sorted[len(sorted)-1], mean))

	return summary{
		count:  len(sorted),
		mean:   mean,
		min:    sorted[0],
		max:    sorted[len(sorted)-1],
		median: percentileSorted(sorted, 0.50),
		p25:    percentileSorted(sorted, 0.25),
		p75:    percentileSorted(sorted, 0.75),
		std:    std,
	}
}
