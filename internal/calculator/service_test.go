package calculator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/nav"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// monthlyRows yields one row per month, newest first like the upstream.
func monthlyRows(start time.Time, n int, navAt func(k int) float64) []nav.Raw {
	rows := make([]nav.Raw, 0, n)
	for k := n - 1; k >= 0; k-- {
		rows = append(rows, nav.Raw{
			Date: dateutil.AddMonths(start, k).Format(dateutil.NAVLayout),
			NAV:  fmt.Sprintf("%.4f", navAt(k)),
		})
	}
	return rows
}

type fakeSource struct {
	mu      sync.Mutex
	schemes map[string]nav.Scheme
	err     error
	calls   int
}

func (f *fakeSource) Scheme(_ context.Context, code string) (nav.Scheme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nav.Scheme{}, f.err
	}
	s, ok := f.schemes[code]
	if !ok {
		return nav.Scheme{}, fmt.Errorf("scheme %s: %w", code, nav.ErrUnknownScheme)
	}
	return s, nil
}

type fakeLister []mfapi.SchemeListItem

func (l fakeLister) List(context.Context, string) ([]mfapi.SchemeListItem, error) {
	return l, nil
}

func growth(rate float64) func(int) float64 {
	return func(k int) float64 {
		v := 10.0
		for i := 0; i < k; i++ {
			v *= 1 + rate
		}
		return v
	}
}

func newFixture() *fakeSource {
	return &fakeSource{schemes: map[string]nav.Scheme{
		"100": {Meta: nav.Meta{Code: "100", Name: "Flat"}, Rows: monthlyRows(day(2020, 1, 1), 48, func(int) float64 { return 10 })},
		"200": {Meta: nav.Meta{Code: "200", Name: "Grower"}, Rows: monthlyRows(day(2020, 1, 1), 48, growth(0.01))},
		"300": {Meta: nav.Meta{Code: "300", Name: "Fast"}, Rows: monthlyRows(day(2020, 1, 1), 48, growth(0.02))},
		"400": {Meta: nav.Meta{Code: "400", Name: "Young"}, Rows: monthlyRows(day(2023, 6, 1), 6, growth(0.05))},
		"500": {Meta: nav.Meta{Code: "500", Name: "Thin"}, Rows: []nav.Raw{{Date: "01-01-2020", NAV: "10"}}},
	}}
}

func TestErrorMapping(t *testing.T) {
	src := newFixture()
	svc := New(src, nil, Options{})
	ctx := context.Background()
	q := analytics.ReturnQuery{Period: "1y"}

	_, _, err := svc.Returns(ctx, "abc", q)
	assert.ErrorIs(t, err, analytics.ErrValidation)
	assert.Equal(t, 0, src.calls, "invalid code must not reach the source")

	_, _, err = svc.Returns(ctx, "999", q)
	assert.ErrorIs(t, err, analytics.ErrInsufficientData)
	assert.ErrorIs(t, err, nav.ErrUnknownScheme)

	_, _, err = svc.Returns(ctx, "500", q)
	assert.ErrorIs(t, err, analytics.ErrInsufficientData)
	assert.ErrorIs(t, err, nav.ErrTooFewPoints)

	src.err = errors.New("connection reset")
	_, _, err = svc.Returns(ctx, "100", q)
	assert.ErrorIs(t, err, analytics.ErrUpstream)
	assert.Equal(t, analytics.KindUpstream, analytics.KindOf(err))

	src.err = context.Canceled
	_, _, err = svc.Returns(ctx, "100", q)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, analytics.Kind(""), analytics.KindOf(err))
}

func TestReturnsCarriesMeta(t *testing.T) {
	svc := New(newFixture(), nil, Options{})
	meta, res, err := svc.Returns(context.Background(), "200", analytics.ReturnQuery{Period: "1y"})
	require.NoError(t, err)
	assert.Equal(t, "Grower", meta.Name)
	require.True(t, res.Available)
	assert.InDelta(t, 12.68, *res.SimpleReturn, 0.01)
}

func TestSIPIgnoresStepUp(t *testing.T) {
	svc := New(newFixture(), nil, Options{})
	q := analytics.SIPQuery{Amount: 1000, AnnualIncreasePercent: 50, From: day(2020, 1, 1), To: day(2022, 12, 1)}

	_, flat, err := svc.SIP(context.Background(), "100", q)
	require.NoError(t, err)
	assert.InDelta(t, 36000, flat.TotalInvested, 1e-6)

	_, stepped, err := svc.StepUpSIP(context.Background(), "100", q)
	require.NoError(t, err)
	assert.Greater(t, stepped.TotalInvested, flat.TotalInvested)
}

func TestDefaultValuationApplied(t *testing.T) {
	src := newFixture()
	q := analytics.SIPQuery{Amount: 1000, From: day(2020, 1, 1), To: day(2021, 1, 1)}

	_, latest, err := New(src, nil, Options{}).SIP(context.Background(), "200", q)
	require.NoError(t, err)
	_, atEnd, err := New(src, nil, Options{Valuation: analytics.ValueAtEndDate}).SIP(context.Background(), "200", q)
	require.NoError(t, err)

	assert.Greater(t, latest.CurrentValue, atEnd.CurrentValue)
	assert.InDelta(t, latest.TotalUnits, atEnd.TotalUnits, 1e-9)
}

func TestSWPAndRolling(t *testing.T) {
	svc := New(newFixture(), nil, Options{Step: analytics.StepMonth})
	ctx := context.Background()

	_, swp, err := svc.SWP(ctx, "100", analytics.SWPQuery{
		InitialInvestment: 10000, Withdrawal: 1000, AnnualIncreasePercent: 25,
		From: day(2020, 1, 1), To: day(2020, 6, 1),
	})
	require.NoError(t, err)
	// first redemption is one month after the lump sum
	assert.Equal(t, 5, swp.Withdrawals)
	assert.InDelta(t, 5000, swp.FinalValue, 1e-6)

	_, roll, err := svc.Rolling(ctx, "200", analytics.RollingQuery{
		Window:   dateutil.Period{Amount: 1, Unit: dateutil.Years},
		Duration: dateutil.Period{Amount: 3, Unit: dateutil.Years},
	})
	require.NoError(t, err)
	assert.Positive(t, roll.Count)
	assert.InDelta(t, roll.Min, roll.Max, 0.5)
}

func TestRankOrdersAndLimits(t *testing.T) {
	dir := fakeLister{
		{SchemeCode: 100, SchemeName: "Flat"},
		{SchemeCode: 200, SchemeName: "Grower"},
		{SchemeCode: 300, SchemeName: "Fast"},
		{SchemeCode: 400, SchemeName: "Young"},
		{SchemeCode: 999, SchemeName: "Gone"},
	}
	svc := New(newFixture(), dir, Options{Concurrency: 2})

	out, err := svc.Rank(context.Background(), RankQuery{From: day(2021, 1, 1), To: day(2022, 1, 1), Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "300", out[0].SchemeCode)
	assert.Equal(t, "200", out[1].SchemeCode)
	assert.Greater(t, out[0].SimpleReturn, out[1].SimpleReturn)

	all, err := svc.Rank(context.Background(), RankQuery{From: day(2021, 1, 1), To: day(2022, 1, 1)})
	require.NoError(t, err)
	// Young has no NAV on or before 2021-01-01 and Gone is unknown.
	assert.Len(t, all, 3)
}

func TestRankMaxFunds(t *testing.T) {
	dir := fakeLister{
		{SchemeCode: 100, SchemeName: "Flat"},
		{SchemeCode: 300, SchemeName: "Fast"},
	}
	svc := New(newFixture(), dir, Options{MaxFunds: 1})
	out, err := svc.Rank(context.Background(), RankQuery{From: day(2021, 1, 1), To: day(2022, 1, 1)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "100", out[0].SchemeCode)
}

func TestRankValidation(t *testing.T) {
	svc := New(newFixture(), fakeLister{}, Options{})
	_, err := svc.Rank(context.Background(), RankQuery{From: day(2022, 1, 1), To: day(2021, 1, 1)})
	assert.ErrorIs(t, err, analytics.ErrValidation)

	_, err = New(newFixture(), nil, Options{}).Rank(context.Background(), RankQuery{From: day(2021, 1, 1), To: day(2022, 1, 1)})
	assert.Error(t, err)
}
