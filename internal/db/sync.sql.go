package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createSyncRun = `
INSERT INTO sync_runs (run_id, run_type, status, started_at)
VALUES ($1, $2, 'RUNNING', now() AT TIME ZONE 'utc')
`

type CreateSyncRunParams struct {
	RunID   pgtype.UUID
	RunType string
}

func (q *Queries) CreateSyncRun(ctx context.Context, arg CreateSyncRunParams) error {
	_, err := q.db.Exec(ctx, createSyncRun, arg.RunID, arg.RunType)
	return err
}

const syncRunColumns = `run_id, run_type, status, started_at, finished_at, error_summary`

const getLatestRunningSyncRun = `
SELECT ` + syncRunColumns + `
FROM sync_runs
WHERE status = 'RUNNING'
ORDER BY started_at DESC
LIMIT 1
`

func (q *Queries) GetLatestRunningSyncRun(ctx context.Context) (SyncRun, error) {
	return scanSyncRun(q.db.QueryRow(ctx, getLatestRunningSyncRun))
}

const getLatestSyncRun = `
SELECT ` + syncRunColumns + `
FROM sync_runs
ORDER BY started_at DESC
LIMIT 1
`

func (q *Queries) GetLatestSyncRun(ctx context.Context) (SyncRun, error) {
	return scanSyncRun(q.db.QueryRow(ctx, getLatestSyncRun))
}

func scanSyncRun(row scanner) (SyncRun, error) {
	var i SyncRun
	err := row.Scan(&i.RunID, &i.RunType, &i.Status, &i.StartedAt, &i.FinishedAt, &i.ErrorSummary)
	return i, err
}

const finishSyncRunSuccess = `
UPDATE sync_runs
SET status = 'COMPLETED', finished_at = now() AT TIME ZONE 'utc', error_summary = NULL
WHERE run_id = $1
`

func (q *Queries) FinishSyncRunSuccess(ctx context.Context, runID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, finishSyncRunSuccess, runID)
	return err
}

const finishSyncRunFailure = `
UPDATE sync_runs
SET status = 'FAILED', finished_at = now() AT TIME ZONE 'utc', error_summary = $2
WHERE run_id = $1
`

type FinishSyncRunFailureParams struct {
	RunID        pgtype.UUID
	ErrorSummary pgtype.Text
}

func (q *Queries) FinishSyncRunFailure(ctx context.Context, arg FinishSyncRunFailureParams) error {
	_, err := q.db.Exec(ctx, finishSyncRunFailure, arg.RunID, arg.ErrorSummary)
	return err
}

const seedSyncState = `
INSERT INTO sync_state (scheme_code, status)
VALUES ($1, 'PENDING')
ON CONFLICT (scheme_code) DO NOTHING
`

func (q *Queries) SeedSyncState(ctx context.Context, schemeCode string) error {
	_, err := q.db.Exec(ctx, seedSyncState, schemeCode)
	return err
}

const resetAllSyncStateToPending = `
UPDATE sync_state
SET status = 'PENDING'
WHERE status <> 'IN_PROGRESS'
`

func (q *Queries) ResetAllSyncStateToPending(ctx context.Context) error {
	_, err := q.db.Exec(ctx, resetAllSyncStateToPending)
	return err
}

const resetEligibleIncrementalSyncStateToPending = `
UPDATE sync_state
SET status = 'PENDING'
WHERE status IN ('COMPLETED', 'FAILED')
`

func (q *Queries) ResetEligibleIncrementalSyncStateToPending(ctx context.Context) error {
	_, err := q.db.Exec(ctx, resetEligibleIncrementalSyncStateToPending)
	return err
}

const requeueStaleInProgressSyncState = `
UPDATE sync_state
SET status = 'PENDING'
WHERE status = 'IN_PROGRESS'
  AND (last_attempt_at IS NULL OR last_attempt_at < $1)
`

func (q *Queries) RequeueStaleInProgressSyncState(ctx context.Context, cutoff pgtype.Timestamp) error {
	_, err := q.db.Exec(ctx, requeueStaleInProgressSyncState, cutoff)
	return err
}

const syncStateColumns = `scheme_code, status, last_synced_date, retry_count, last_error, last_attempt_at`

const claimNextSyncState = `
UPDATE sync_state
SET status = 'IN_PROGRESS', last_attempt_at = now() AT TIME ZONE 'utc'
WHERE scheme_code = (
    SELECT scheme_code
    FROM sync_state
    WHERE status = 'PENDING'
    ORDER BY scheme_code
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + syncStateColumns

func (q *Queries) ClaimNextSyncState(ctx context.Context) (SyncState, error) {
	return scanSyncState(q.db.QueryRow(ctx, claimNextSyncState))
}

const updateSyncStateSuccess = `
UPDATE sync_state
SET status = 'COMPLETED', last_synced_date = $2, retry_count = 0, last_error = NULL
WHERE scheme_code = $1
`

type UpdateSyncStateSuccessParams struct {
	SchemeCode     string
	LastSyncedDate pgtype.Date
}

func (q *Queries) UpdateSyncStateSuccess(ctx context.Context, arg UpdateSyncStateSuccessParams) error {
	_, err := q.db.Exec(ctx, updateSyncStateSuccess, arg.SchemeCode, arg.LastSyncedDate)
	return err
}

const updateSyncStateAttempt = `
UPDATE sync_state
SET status = $2, retry_count = $3, last_error = $4, last_attempt_at = now() AT TIME ZONE 'utc'
WHERE scheme_code = $1
`

type UpdateSyncStateAttemptParams struct {
	SchemeCode string
	Status     string
	RetryCount int32
	LastError  pgtype.Text
}

func (q *Queries) UpdateSyncStateAttempt(ctx context.Context, arg UpdateSyncStateAttemptParams) error {
	_, err := q.db.Exec(ctx, updateSyncStateAttempt, arg.SchemeCode, arg.Status, arg.RetryCount, arg.LastError)
	return err
}

const countSyncStateByStatus = `
SELECT status, count(*)
FROM sync_state
GROUP BY status
ORDER BY status
`

type CountSyncStateByStatusRow struct {
	Status string
	Count  int64
}

func (q *Queries) CountSyncStateByStatus(ctx context.Context) ([]CountSyncStateByStatusRow, error) {
	rows, err := q.db.Query(ctx, countSyncStateByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountSyncStateByStatusRow
	for rows.Next() {
		var i CountSyncStateByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSyncState = `
SELECT ` + syncStateColumns + `
FROM sync_state
ORDER BY scheme_code
`

func (q *Queries) ListSyncState(ctx context.Context) ([]SyncState, error) {
	rows, err := q.db.Query(ctx, listSyncState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncState
	for rows.Next() {
		i, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanSyncState(row scanner) (SyncState, error) {
	var i SyncState
	err := row.Scan(&i.SchemeCode, &i.Status, &i.LastSyncedDate, &i.RetryCount, &i.LastError, &i.LastAttemptAt)
	return i, err
}
