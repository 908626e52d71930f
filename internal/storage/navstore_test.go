package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mf-returns-service/internal/db"
	"mf-returns-service/internal/nav"
)

func TestNewPoolRequiresURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNavStoreScheme(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, Config{DatabaseURL: dsn})
	require.NoError(t, err)
	defer pool.Close()

	for _, tbl := range []string{"sync_runs", "rate_limiter_state", "sync_state", "nav_history", "funds"} {
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+tbl)
	}
	ddl, err := os.ReadFile("../../migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, strings.TrimSpace(string(ddl)))
	require.NoError(t, err)

	q := db.New(pool)
	require.NoError(t, q.UpsertFund(ctx, db.UpsertFundParams{SchemeCode: "42", SchemeName: "Answer Fund", Amc: "Deep Thought"}))
	for i, v := range []string{"10.5", "11.25"} {
		require.NoError(t, q.UpsertNavHistory(ctx, db.UpsertNavHistoryParams{
			SchemeCode: "42",
			NavDate:    pgtype.Date{Time: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC), Valid: true},
			NavValue:   decimal.RequireFromString(v),
		}))
	}

	store := NewNavStore(pool)
	s, err := store.Scheme(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Deep Thought", s.Meta.FundHouse)
	assert.Equal(t, []nav.Raw{{Date: "01-01-2024", NAV: "10.5"}, {Date: "02-01-2024", NAV: "11.25"}}, s.Rows)

	series, err := nav.Normalize(s.Rows)
	require.NoError(t, err)
	assert.Equal(t, 11.25, series.Latest().NAV)

	_, err = store.Scheme(ctx, "7")
	assert.ErrorIs(t, err, nav.ErrUnknownScheme)
}
