// Package dateutil holds the calendar arithmetic shared by the return engines.
// All dates are treated as UTC midnights.
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	ISOLayout = "2006-01-02"
	NAVLayout = "02-01-2006" // dd-mm-yyyy, as served by mfapi
)

// DaysPerYear is used to turn day counts into fractional years.
const DaysPerYear = 365.25

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func ParseNAVDate(s string) (time.Time, error) {
	return time.Parse(NAVLayout, strings.TrimSpace(s))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths adds n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28/29). n may be negative.
func AddMonths(t time.Time, n int) time.Time {
	t = Day(t)
	total := int(t.Month()) - 1 + n
	year := t.Year() + total/12
	mi := total % 12
	if mi < 0 {
		mi += 12
		year--
	}
	month := time.Month(mi + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddYears adds n calendar years with the same clamping as AddMonths
// (Feb 29 + 1 year = Feb 28).
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// YearsBetween is DaysBetween expressed in fractional years.
func YearsBetween(a, b time.Time) float64 {
	return float64(DaysBetween(a, b)) / DaysPerYear
}

// WholeYearsBetween counts the full calendar years elapsed from a to b.
// It is zero when b is before a's first anniversary (or before a).
func WholeYearsBetween(a, b time.Time) int {
	a, b = Day(a), Day(b)
	if b.Before(a) {
		return 0
	}
	n := b.Year() - a.Year()
	if n > 0 && AddYears(a, n).After(b) {
		n--
	}
	return n
}

// AtLeastOneYear reports whether b is on or after the first anniversary of a.
func AtLeastOneYear(a, b time.Time) bool {
	return !AddYears(a, 1).After(Day(b))
}

type Unit byte

const (
	Days   Unit = 'd'
	Months Unit = 'm'
	Years  Unit = 'y'
)

// Period is a calendar length such as 3m or 5y.
type Period struct {
	Amount int
	Unit   Unit
}

// MaxPeriodYears bounds every period so calendar arithmetic cannot overflow.
const MaxPeriodYears = 100

var maxAmount = map[Unit]int{
	Days:   MaxPeriodYears * 366,
	Months: MaxPeriodYears * 12,
	Years:  MaxPeriodYears,
}

// InRange reports whether the amount is positive and no longer than
// MaxPeriodYears.
func (p Period) InRange() bool {
	max, ok := maxAmount[p.Unit]
	return ok && p.Amount > 0 && p.Amount <= max
}

// ParsePeriod parses tokens of the form <integer><d|m|y>.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Period{}, fmt.Errorf("invalid period %q (want e.g. 30d, 6m, 1y)", s)
	}
	u := Unit(s[len(s)-1])
	switch u {
	case Days, Months, Years:
	default:
		return Period{}, fmt.Errorf("invalid period unit in %q (want d, m or y)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Period{}, fmt.Errorf("invalid period amount in %q", s)
	}
	p := Period{Amount: n, Unit: u}
	if !p.InRange() {
		return Period{}, fmt.Errorf("period %q exceeds %d years", s, MaxPeriodYears)
	}
	return p, nil
}

func (p Period) String() string {
	return strconv.Itoa(p.Amount) + string(p.Unit)
}

// AddTo moves t forward by the period.
func (p Period) AddTo(t time.Time) time.Time {
	switch p.Unit {
	case Days:
		return Day(t).AddDate(0, 0, p.Amount)
	case Months:
		return AddMonths(t, p.Amount)
	default:
		return AddYears(t, p.Amount)
	}
}

// SubtractFrom moves t back by the period.
func (p Period) SubtractFrom(t time.Time) time.Time {
	return Period{Amount: -p.Amount, Unit: p.Unit}.AddTo(t)
}

// Years expresses the period as a fraction of a year.
func (p Period) Years() float64 {
	switch p.Unit {
	case Days:
		return float64(p.Amount) / DaysPerYear
	case Months:
		return float64(p.Amount) / 12
	default:
		return float64(p.Amount)
	}
}
