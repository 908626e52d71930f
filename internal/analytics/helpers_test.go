package analytics

import (
	"fmt"
	"math"
	"testing"
	"time"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/nav"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustSeries(t *testing.T, rows ...nav.Raw) nav.Series {
	t.Helper()
	s, err := nav.Normalize(rows)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return s
}

func row(dt time.Time, v float64) nav.Raw {
	return nav.Raw{Date: dt.Format(dateutil.NAVLayout), NAV: fmt.Sprintf("%.10f", v)}
}

// monthly builds n monthly observations starting at start; navAt maps the
// month index to a NAV.
func monthly(t *testing.T, start time.Time, n int, navAt func(k int) float64) nav.Series {
	t.Helper()
	rows := make([]nav.Raw, 0, n)
	for k := 0; k < n; k++ {
		rows = append(rows, row(dateutil.AddMonths(start, k), navAt(k)))
	}
	return mustSeries(t, rows...)
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
