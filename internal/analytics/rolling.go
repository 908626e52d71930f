package analytics

import (
	"time"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/nav"
)

// Step is the distance between consecutive rolling-window start dates.
type Step string

const (
	StepDay   Step = "day"
	StepMonth Step = "month"
)

func (s Step) Valid() bool { return s == StepDay || s == StepMonth }

type RollingQuery struct {
	Window   dateutil.Period
	Duration dateutil.Period
	// Start overrides the duration-derived range start when non-zero.
	Start time.Time
	Step  Step
}

func (q RollingQuery) Validate() error {
	if !q.Window.InRange() {
		return validationf("window must be a positive period of at most %dy, such as 1y", dateutil.MaxPeriodYears)
	}
	if q.Start.IsZero() && !q.Duration.InRange() {
		return validationf("duration must be a positive period of at most %dy, such as 5y", dateutil.MaxPeriodYears)
	}
	if q.Step != "" && !q.Step.Valid() {
		return validationf("step must be one of day|month")
	}
	return nil
}

type RollingPoint struct {
	Date time.Time // window end
	CAGR float64
}

type RollingResult struct {
	Window     dateutil.Period
	Step       Step
	RangeStart time.Time
	RangeEnd   time.Time

	Count   int
	Average float64
	Max     float64
	Min     float64
	Median  float64
	P25     float64
	P75     float64
	StdDev  float64

	Series []RollingPoint
}

// Rolling slides a fixed-length window across the series and collects the
// annualized return of every window that fits before the latest NAV.
func Rolling(s nav.Series, q RollingQuery) (RollingResult, error) {
	if err := q.Validate(); err != nil {
		return RollingResult{}, err
	}
	step := q.Step
	if step == "" {
		step = StepDay
	}

	first, last := s.Earliest().Date, s.Latest().Date
	var rangeStart time.Time
	if !q.Start.IsZero() {
		rangeStart = dateutil.Day(q.Start)
		if rangeStart.After(last) {
			return RollingResult{}, outOfRangef("start %s is after the latest available nav on %s",
				rangeStart.Format(dateutil.ISOLayout), last.Format(dateutil.ISOLayout))
		}
	} else {
		rangeStart = q.Duration.SubtractFrom(last)
	}
	if rangeStart.Before(first) {
		rangeStart = first
	}

	sub := s.Between(rangeStart, last)
	years := q.Window.Years()

	res := RollingResult{Window: q.Window, Step: step, RangeStart: rangeStart, RangeEnd: last}
	cagrs := make([]float64, 0, sub.Len())

	for k := 0; ; k++ {
		cursor := stepFrom(rangeStart, step, k)
		windowEnd := q.Window.AddTo(cursor)
		if windowEnd.After(last) {
			break
		}
		so, ok := sub.Lookup(cursor)
		if !ok || so.NAV <= 0 {
			continue
		}
		eo, ok := sub.Lookup(windowEnd)
		if !ok {
			continue
		}
		c := cagrPct(so.NAV, eo.NAV, years)
		if !finite(c) {
			continue
		}
		cagrs = append(cagrs, c)
		res.Series = append(res.Series, RollingPoint{Date: windowEnd, CAGR: c})
	}

	if len(cagrs) == 0 {
		return RollingResult{}, insufficientf(
			"not enough data for %s rolling returns between %s and %s",
			q.Window, rangeStart.Format(dateutil.ISOLayout), last.Format(dateutil.ISOLayout),
		)
	}

	sum := summarize(cagrs)
	res.Count = sum.count
	res.Average = sum.mean
	res.Max = sum.max
	res.Min = sum.min
	res.Median = sum.median
	res.P25 = sum.p25
	res.P75 = sum.p75
	res.StdDev = sum.std
	return res, nil
}

func stepFrom(start time.Time, step Step, k int) time.Time {
	if step == StepMonth {
		return dateutil.AddMonths(start, k)
	}
	return start.AddDate(0, 0, k)
}
