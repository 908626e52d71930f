// Package nav turns raw upstream NAV rows into an immutable, date-indexed series.
package nav

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mf-returns-service/internal/dateutil"
)

// ErrTooFewPoints is returned by Normalize when fewer than two usable
// observations survive cleaning.
var ErrTooFewPoints = errors.New("fewer than 2 usable nav points")

// Raw is one upstream row: date as dd-mm-yyyy, NAV as a decimal string.
type Raw struct {
	Date string `json:"date"`
	NAV  string `json:"nav"`
}

type Observation struct {
	Date time.Time
	NAV  float64
}

// Series is sorted ascending by date with unique dates and NAV > 0.
// It is never mutated after Normalize returns it.
type Series struct {
	obs []Observation
}

// Point is a cleaned row that keeps the exact decimal NAV, for writers that
// persist values rather than compute with them.
type Point struct {
	Date  time.Time
	Value decimal.Decimal
}

type parsed struct {
	Point
	seq int
}

// Clean parses and sorts raw rows. Rows with an unparseable date or a NAV
// that is not a finite positive number are dropped. When a date repeats, the
// row that appears last in the input wins.
func Clean(rows []Raw) []Point {
	ps := make([]parsed, 0, len(rows))
	for i, r := range rows {
		dt, err := dateutil.ParseNAVDate(r.Date)
		if err != nil {
			continue
		}
		v, ok := parseNAV(r.NAV)
		if !ok {
			continue
		}
		ps = append(ps, parsed{Point: Point{Date: dt, Value: v}, seq: i})
	}

	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })

	out := make([]Point, 0, len(ps))
	for i := 0; i < len(ps); i++ {
		// stable sort keeps input order inside a run of equal dates
		if i+1 < len(ps) && ps[i+1].Date.Equal(ps[i].Date) {
			continue
		}
		out = append(out, ps[i].Point)
	}
	return out
}

// Normalize cleans raw rows (see Clean) into a series.
func Normalize(rows []Raw) (Series, error) {
	pts := Clean(rows)
	if len(pts) < 2 {
		return Series{}, ErrTooFewPoints
	}
	obs := make([]Observation, len(pts))
	for i, p := range pts {
		obs[i] = Observation{Date: p.Date, NAV: p.Value.InexactFloat64()}
	}
	return Series{obs: obs}, nil
}

func parseNAV(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (s Series) Len() int { return len(s.obs) }

func (s Series) Earliest() Observation { return s.obs[0] }

func (s Series) Latest() Observation { return s.obs[len(s.obs)-1] }

// Points returns a copy of the observations.
func (s Series) Points() []Observation {
	out := make([]Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Lookup returns the last observation dated on or before t.
func (s Series) Lookup(t time.Time) (Observation, bool) {
	t = dateutil.Day(t)
	// first index strictly after t
	i := sort.Search(len(s.obs), func(i int) bool { return s.obs[i].Date.After(t) })
	if i == 0 {
		return Observation{}, false
	}
	return s.obs[i-1], true
}

// Between returns the observations dated within [from, to]. The result may
// hold fewer than two points; it shares no memory with s.
func (s Series) Between(from, to time.Time) Series {
	from, to = dateutil.Day(from), dateutil.Day(to)
	lo := sort.Search(len(s.obs), func(i int) bool { return !s.obs[i].Date.Before(from) })
	hi := sort.Search(len(s.obs), func(i int) bool { return s.obs[i].Date.After(to) })
	if lo >= hi {
		return Series{}
	}
	out := make([]Observation, hi-lo)
	copy(out, s.obs[lo:hi])
	return Series{obs: out}
}
