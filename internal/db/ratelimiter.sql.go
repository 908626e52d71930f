package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ensureRateLimiterState = `
INSERT INTO rate_limiter_state (window_type, window_start, request_count)
VALUES ($1, $2, 0)
ON CONFLICT (window_type) DO NOTHING
`

type EnsureRateLimiterStateParams struct {
	WindowType  string
	WindowStart pgtype.Timestamp
}

func (q *Queries) EnsureRateLimiterState(ctx context.Context, arg EnsureRateLimiterStateParams) error {
	_, err := q.db.Exec(ctx, ensureRateLimiterState, arg.WindowType, arg.WindowStart)
	return err
}

const upsertRateLimiterState = `
INSERT INTO rate_limiter_state (window_type, window_start, request_count)
VALUES ($1, $2, $3)
ON CONFLICT (window_type) DO UPDATE SET
    window_start  = EXCLUDED.window_start,
    request_count = EXCLUDED.request_count
`

type UpsertRateLimiterStateParams struct {
	WindowType   string
	WindowStart  pgtype.Timestamp
	RequestCount int32
}

func (q *Queries) UpsertRateLimiterState(ctx context.Context, arg UpsertRateLimiterStateParams) error {
	_, err := q.db.Exec(ctx, upsertRateLimiterState, arg.WindowType, arg.WindowStart, arg.RequestCount)
	return err
}

const getRateLimiterStateForUpdate = `
SELECT window_type, window_start, request_count
FROM rate_limiter_state
WHERE window_type = $1
FOR UPDATE
`

func (q *Queries) GetRateLimiterStateForUpdate(ctx context.Context, windowType string) (RateLimiterState, error) {
	row := q.db.QueryRow(ctx, getRateLimiterStateForUpdate, windowType)
	var i RateLimiterState
	err := row.Scan(&i.WindowType, &i.WindowStart, &i.RequestCount)
	return i, err
}
