package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mf-returns-service/internal/db"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/nav"
	"mf-returns-service/internal/storage"
)

type fakeFetcher struct {
	full   map[int64]mfapi.SchemeResponse
	ranged map[int64]mfapi.SchemeResponse
	calls  []string
}

func (f *fakeFetcher) GetScheme(_ context.Context, code int64) (mfapi.SchemeResponse, error) {
	f.calls = append(f.calls, "full")
	r, ok := f.full[code]
	if !ok {
		return mfapi.SchemeResponse{}, mfapi.ErrNotFound
	}
	return r, nil
}

func (f *fakeFetcher) GetSchemeRange(_ context.Context, code int64, _, _ time.Time) (mfapi.SchemeResponse, error) {
	f.calls = append(f.calls, "range")
	return f.ranged[code], nil
}

func TestParseCode(t *testing.T) {
	c, err := parseCode("119551")
	require.NoError(t, err)
	assert.Equal(t, int64(119551), c)

	for _, bad := range []string{"", "abc", "-4", "0"} {
		_, err := parseCode(bad)
		assert.Error(t, err, bad)
	}
}

func TestBackfillThenIncremental(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	f := &fakeFetcher{
		full: map[int64]mfapi.SchemeResponse{
			100: {
				Meta: mfapi.SchemeMeta{SchemeCode: 100, SchemeName: "Alpha Fund", FundHouse: "Alpha AMC", SchemeCategory: "Equity"},
				Data: []nav.Raw{
					{Date: "03-01-2024", NAV: "10.3"},
					{Date: "02-01-2024", NAV: "10.2"},
					{Date: "01-01-2024", NAV: "10.1"},
					{Date: "01-01-2024", NAV: "N.A."},
				},
			},
		},
		ranged: map[int64]mfapi.SchemeResponse{
			100: {Data: []nav.Raw{{Date: "04-01-2024", NAV: "10.4"}}},
		},
	}

	require.NoError(t, SeedTracked(ctx, pool, []string{"100", "200"}))
	_, err := Enqueue(ctx, pool, db.RunTypeBackfill)
	require.NoError(t, err)

	_, err = Enqueue(ctx, pool, db.RunTypeManual)
	assert.ErrorIs(t, err, ErrRunActive)

	r := NewBackfillRunner(pool, f, time.Minute, nil)
	processed, err := r.RunLatest(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	q := db.New(pool)
	run, err := q.GetLatestSyncRun(ctx)
	require.NoError(t, err)
	// scheme 200 is unknown upstream
	assert.Equal(t, db.RunStatusFailed, run.Status)

	s, err := storage.NewNavStore(pool).Scheme(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Fund", s.Meta.Name)
	require.Len(t, s.Rows, 3)

	r.now = func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC) }
	_, err = Enqueue(ctx, pool, db.RunTypeIncremental)
	require.NoError(t, err)
	_, err = r.RunLatest(ctx)
	require.NoError(t, err)
	assert.Contains(t, f.calls, "range")

	s, err = storage.NewNavStore(pool).Scheme(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, s.Rows, 4)
	assert.Equal(t, "Alpha Fund", s.Meta.Name, "empty range meta must not blank the fund")

	latest, err := q.GetLatestNav(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "10.4", latest.NavValue.String())
}

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	pool, err := storage.NewPool(ctx, storage.Config{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, tbl := range []string{"sync_runs", "rate_limiter_state", "sync_state", "nav_history", "funds"} {
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+tbl)
	}
	ddl, err := os.ReadFile("../../migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, strings.TrimSpace(string(ddl)))
	require.NoError(t, err)
	return pool
}
