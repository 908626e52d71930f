// Package pipeline mirrors upstream NAV history into Postgres. A sync run
// queues every tracked scheme in sync_state; workers claim schemes one at a
// time and either backfill the full history or fetch only the missing tail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mf-returns-service/internal/db"
	"mf-returns-service/internal/mfapi"
)

// Fetcher is the slice of the upstream client the runner needs.
type Fetcher interface {
	GetScheme(ctx context.Context, schemeCode int64) (mfapi.SchemeResponse, error)
	GetSchemeRange(ctx context.Context, schemeCode int64, startDate, endDate time.Time) (mfapi.SchemeResponse, error)
}

type BackfillRunner struct {
	pool       *pgxpool.Pool
	mf         Fetcher
	staleAfter time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewBackfillRunner(
	pool *pgxpool.Pool,
	mf Fetcher,
	staleAfter time.Duration,
	log *slog.Logger,
) *BackfillRunner {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &BackfillRunner{
		pool:       pool,
		mf:         mf,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log.With("component", "pipeline"),
	}
}

// RunLatest drains the latest RUNNING run and marks it completed or failed.
// processed is false when there is no RUNNING run.
func (r *BackfillRunner) RunLatest(ctx context.Context) (processed bool, err error) {
	q := db.New(r.pool)

	run, err := q.GetLatestRunningSyncRun(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("latest running sync run: %w", err)
	}
	processed = true
	log := r.log.With("run_id", uuidString(run.RunID), "run_type", run.RunType)
	log.Info("sync run started")

	// Schemes left IN_PROGRESS by a crashed worker go back to the queue.
	cutoff := r.now().UTC().Add(-r.staleAfter)
	if err := q.RequeueStaleInProgressSyncState(ctx, pgtype.Timestamp{Time: cutoff, Valid: true}); err != nil {
		return processed, fmt.Errorf("requeue stale: %w", err)
	}

	var ok, failed int
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		st, err := q.ClaimNextSyncState(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			break
		}
		if err != nil {
			return processed, fmt.Errorf("claim sync state: %w", err)
		}

		var perScheme error
		if run.RunType == db.RunTypeIncremental {
			perScheme = r.incrementalOne(ctx, st)
		} else {
			perScheme = r.backfillOne(ctx, st)
		}
		// A failing scheme is recorded on its sync_state row and the run moves on.
		if perScheme != nil {
			failed++
			log.Warn("scheme sync failed", "scheme_code", st.SchemeCode, "error", perScheme)
			continue
		}
		ok++
	}

	log.Info("sync run drained", "succeeded", ok, "failed", failed)
	return processed, r.finishRun(ctx, q, run)
}

func (r *BackfillRunner) finishRun(ctx context.Context, q *db.Queries, run db.SyncRun) error {
	counts, err := q.CountSyncStateByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count sync state: %w", err)
	}
	var failed int64
	for _, c := range counts {
		if c.Status == db.SyncStatusFailed {
			failed = c.Count
		}
	}
	if failed > 0 {
		return q.FinishSyncRunFailure(ctx, db.FinishSyncRunFailureParams{
			RunID: run.RunID,
			ErrorSummary: pgtype.Text{
				String: fmt.Sprintf("%d scheme(s) failed", failed),
				Valid:  true,
			},
		})
	}
	return q.FinishSyncRunSuccess(ctx, run.RunID)
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
