package analytics

import (
	"time"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/nav"
)

// ReturnPeriods is the closed set of period tokens accepted for
// point-to-period returns.
var ReturnPeriods = map[string]dateutil.Period{
	"1m": {Amount: 1, Unit: dateutil.Months},
	"3m": {Amount: 3, Unit: dateutil.Months},
	"6m": {Amount: 6, Unit: dateutil.Months},
	"1y": {Amount: 1, Unit: dateutil.Years},
	"3y": {Amount: 3, Unit: dateutil.Years},
	"5y": {Amount: 5, Unit: dateutil.Years},
}

// ReturnQuery selects either a trailing Period token, or an explicit
// From/To range when Period is empty.
type ReturnQuery struct {
	Period string
	From   time.Time
	To     time.Time
}

func (q ReturnQuery) Validate() error {
	if q.Period != "" {
		if _, ok := ReturnPeriods[q.Period]; !ok {
			return validationf("period must be one of 1m|3m|6m|1y|3y|5y")
		}
		return nil
	}
	if q.From.IsZero() || q.To.IsZero() {
		return validationf("either period or both from and to are required")
	}
	if !q.From.Before(q.To) {
		return validationf("from must be before to")
	}
	return nil
}

// ReturnResult describes a point-to-point return. When Available is false
// the series does not reach back to the requested start and every return
// field is nil; this is distinct from a computed zero.
type ReturnResult struct {
	Period    string
	Available bool

	TargetStart time.Time
	Start       nav.Observation
	End         nav.Observation
	Days        int

	SimpleReturn     *float64
	AnnualizedReturn *float64
	MaxDrawdown      *float64
}

// PointReturn computes the return between two observations located by
// last-observation-carried-forward lookup.
func PointReturn(s nav.Series, q ReturnQuery) (ReturnResult, error) {
	if err := q.Validate(); err != nil {
		return ReturnResult{}, err
	}

	var end nav.Observation
	var target time.Time
	if q.Period != "" {
		end = s.Latest()
		target = ReturnPeriods[q.Period].SubtractFrom(end.Date)
	} else {
		o, ok := s.Lookup(q.To)
		if !ok {
			return ReturnResult{}, outOfRangef(
				"no nav on or before %s; earliest available date is %s",
				q.To.Format(dateutil.ISOLayout), s.Earliest().Date.Format(dateutil.ISOLayout),
			)
		}
		end = o
		target = dateutil.Day(q.From)
	}

	res := ReturnResult{Period: q.Period, TargetStart: target, End: end}

	start, ok := s.Lookup(target)
	if !ok || !start.Date.Before(end.Date) {
		return res, nil
	}

	res.Available = true
	res.Start = start
	res.Days = dateutil.DaysBetween(start.Date, end.Date)

	simple := (end.NAV - start.NAV) / start.NAV * 100
	res.SimpleReturn = &simple

	if dateutil.AtLeastOneYear(start.Date, end.Date) {
		c := cagrPct(start.NAV, end.NAV, dateutil.YearsBetween(start.Date, end.Date))
		if finite(c) {
			res.AnnualizedReturn = &c
		}
	}

	dd := maxDrawdownPct(s.Between(start.Date, end.Date).Points())
	res.MaxDrawdown = &dd

	return res, nil
}
