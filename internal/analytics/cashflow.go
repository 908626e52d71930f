package analytics

import (
	"math"
	"time"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/nav"
)

// Valuation picks the NAV used to value units left at the end of a plan.
type Valuation string

const (
	// ValueAtLatest uses the latest observation in the whole series.
	ValueAtLatest Valuation = "latest"
	// ValueAtEndDate uses the NAV resolved at the plan's end date.
	ValueAtEndDate Valuation = "end_date"
)

func (v Valuation) Valid() bool {
	return v == ValueAtLatest || v == ValueAtEndDate
}

// unitEpsilon absorbs float noise when comparing unit balances.
const unitEpsilon = 1e-9

// StepUp returns the periodic amount after years whole years of annual
// increases of pct percent.
func StepUp(base, pct float64, years int) float64 {
	if years <= 0 || pct == 0 {
		return base
	}
	return base * math.Pow(1+pct/100, float64(years))
}

type SIPQuery struct {
	Amount                float64
	AnnualIncreasePercent float64
	From                  time.Time
	To                    time.Time
	Valuation             Valuation
}

func (q SIPQuery) Validate() error {
	if !(q.Amount > 0) || math.IsInf(q.Amount, 0) {
		return validationf("amount must be a positive number")
	}
	if err := validateRate(q.AnnualIncreasePercent); err != nil {
		return err
	}
	return validatePlanDates(q.From, q.To, q.Valuation)
}

type GrowthPoint struct {
	Date     time.Time
	Invested float64
	Value    float64
}

type SIPResult struct {
	From, To         time.Time
	Installments     int
	TotalInvested    float64
	TotalUnits       float64
	ValuationNAV     nav.Observation
	CurrentValue     float64
	AbsoluteReturn   float64
	AnnualizedReturn *float64
	Growth           []GrowthPoint
}

// SimulateSIP buys the (stepped-up) amount's worth of units on every monthly
// date from From through To inclusive. Months with no resolvable NAV are
// skipped.
func SimulateSIP(s nav.Series, q SIPQuery) (SIPResult, error) {
	if err := q.Validate(); err != nil {
		return SIPResult{}, err
	}
	from, to := dateutil.Day(q.From), dateutil.Day(q.To)
	if err := checkPlanBounds(s, from); err != nil {
		return SIPResult{}, err
	}

	res := SIPResult{From: from, To: to}
	for k := 0; ; k++ {
		cursor := dateutil.AddMonths(from, k)
		if cursor.After(to) {
			break
		}
		o, ok := s.Lookup(cursor)
		if !ok || o.NAV <= 0 {
			continue
		}
		amount := StepUp(q.Amount, q.AnnualIncreasePercent, dateutil.WholeYearsBetween(from, cursor))
		res.TotalUnits += amount / o.NAV
		res.TotalInvested += amount
		res.Installments++
		res.Growth = append(res.Growth, GrowthPoint{
			Date:     cursor,
			Invested: res.TotalInvested,
			Value:    res.TotalUnits * o.NAV,
		})
	}

	if err := requirePurchase(res.TotalInvested, from, to); err != nil {
		return SIPResult{}, err
	}

	vo, err := valuationNAV(s, q.Valuation, to)
	if err != nil {
		return SIPResult{}, err
	}
	res.ValuationNAV = vo
	res.CurrentValue = res.TotalUnits * vo.NAV
	res.AbsoluteReturn = (res.CurrentValue - res.TotalInvested) / res.TotalInvested * 100

	if dateutil.AtLeastOneYear(from, to) {
		c := cagrPct(res.TotalInvested, res.CurrentValue, dateutil.YearsBetween(from, to))
		if finite(c) {
			res.AnnualizedReturn = &c
		}
	}
	return res, nil
}

type SWPQuery struct {
	InitialInvestment     float64
	Withdrawal            float64
	AnnualIncreasePercent float64
	From                  time.Time
	To                    time.Time
	Valuation             Valuation
}

func (q SWPQuery) Validate() error {
	if !(q.InitialInvestment > 0) || math.IsInf(q.InitialInvestment, 0) {
		return validationf("initialInvestment must be a positive number")
	}
	if !(q.Withdrawal > 0) || math.IsInf(q.Withdrawal, 0) {
		return validationf("withdrawal amount must be a positive number")
	}
	if err := validateRate(q.AnnualIncreasePercent); err != nil {
		return err
	}
	return validatePlanDates(q.From, q.To, q.Valuation)
}

type WithdrawalPoint struct {
	Date      time.Time
	Withdrawn float64
	Value     float64
}

type SWPResult struct {
	From, To          time.Time
	InitialInvestment float64
	InitialNAV        nav.Observation
	Withdrawals       int
	TotalWithdrawn    float64
	TotalUnits        float64
	ValuationNAV      nav.Observation
	FinalValue        float64
	IsPortfolioActive bool
	ExhaustedOn       *time.Time
	Trace             []WithdrawalPoint
}

// SimulateSWP converts the lump sum to units at From, then redeems the
// (stepped-up) withdrawal every month starting one month after From through
// To inclusive. The plan stops as soon as the units run out.
func SimulateSWP(s nav.Series, q SWPQuery) (SWPResult, error) {
	if err := q.Validate(); err != nil {
		return SWPResult{}, err
	}
	from, to := dateutil.Day(q.From), dateutil.Day(q.To)
	if err := checkPlanBounds(s, from); err != nil {
		return SWPResult{}, err
	}

	initial, ok := s.Lookup(from)
	if !ok || initial.NAV <= 0 {
		return SWPResult{}, insufficientf("nav not available for the initial investment date %s",
			from.Format(dateutil.ISOLayout))
	}

	res := SWPResult{
		From:              from,
		To:                to,
		InitialInvestment: q.InitialInvestment,
		InitialNAV:        initial,
	}
	units := q.InitialInvestment / initial.NAV

	for k := 1; ; k++ {
		cursor := dateutil.AddMonths(from, k)
		if cursor.After(to) {
			break
		}
		o, ok := s.Lookup(cursor)
		if !ok || o.NAV <= 0 {
			continue
		}
		amount := StepUp(q.Withdrawal, q.AnnualIncreasePercent, dateutil.WholeYearsBetween(from, cursor))
		need := amount / o.NAV

		if units < need-unitEpsilon {
			res.TotalWithdrawn += units * o.NAV
			units = 0
		} else {
			units -= need
			res.TotalWithdrawn += amount
		}
		res.Withdrawals++

		if units < unitEpsilon {
			units = 0
			exhausted := cursor
			res.ExhaustedOn = &exhausted
		}
		res.Trace = append(res.Trace, WithdrawalPoint{
			Date:      cursor,
			Withdrawn: res.TotalWithdrawn,
			Value:     units * o.NAV,
		})
		if res.ExhaustedOn != nil {
			break
		}
	}

	res.TotalUnits = units
	res.IsPortfolioActive = units > 0
	if units > 0 {
		vo, err := valuationNAV(s, q.Valuation, to)
		if err != nil {
			return SWPResult{}, err
		}
		res.ValuationNAV = vo
		res.FinalValue = units * vo.NAV
	}
	return res, nil
}

// requirePurchase rejects a plan in which no month resolved a NAV.
func requirePurchase(invested float64, from, to time.Time) error {
	if invested > 0 {
		return nil
	}
	return validationf("no periods produced a purchase between %s and %s",
		from.Format(dateutil.ISOLayout), to.Format(dateutil.ISOLayout))
}

func validateRate(pct float64) error {
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct <= -100 {
		return validationf("annualIncreasePercent must be a number greater than -100")
	}
	return nil
}

func validatePlanDates(from, to time.Time, v Valuation) error {
	if from.IsZero() || to.IsZero() {
		return validationf("from and to dates are required")
	}
	if from.After(to) {
		return validationf("from must not be after to")
	}
	if v != "" && !v.Valid() {
		return validationf("valuation must be one of latest|end_date")
	}
	return nil
}

// checkPlanBounds rejects plans whose start falls outside the series rather
// than silently shortening the simulated horizon.
func checkPlanBounds(s nav.Series, from time.Time) error {
	if first := s.Earliest().Date; first.After(from) {
		return outOfRangef("data out of bounds: earliest available nav is %s",
			first.Format(dateutil.ISOLayout))
	}
	if last := s.Latest().Date; from.After(last) {
		return outOfRangef("data out of bounds: last available nav is %s",
			last.Format(dateutil.ISOLayout))
	}
	return nil
}

func valuationNAV(s nav.Series, v Valuation, end time.Time) (nav.Observation, error) {
	if v == ValueAtEndDate {
		o, ok := s.Lookup(end)
		if !ok {
			return nav.Observation{}, insufficientf("nav not available for end date %s",
				end.Format(dateutil.ISOLayout))
		}
		return o, nil
	}
	return s.Latest(), nil
}
