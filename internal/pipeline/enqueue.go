package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mf-returns-service/internal/db"
)

// ErrRunActive is returned by Enqueue while another run is still RUNNING.
var ErrRunActive = errors.New("a sync run is already running")

// Enqueue opens a sync run of the given type and queues its schemes.
// Incremental runs only requeue schemes that finished before; manual and
// backfill runs requeue everything not currently in flight. When a run is
// already active its id is returned together with ErrRunActive.
func Enqueue(ctx context.Context, pool *pgxpool.Pool, runType string) (string, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := db.New(tx)

	existing, err := q.GetLatestRunningSyncRun(ctx)
	if err == nil {
		return uuidString(existing.RunID), ErrRunActive
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("latest running sync run: %w", err)
	}

	id := uuid.New()
	if err := q.CreateSyncRun(ctx, db.CreateSyncRunParams{
		RunID:   pgtype.UUID{Bytes: [16]byte(id), Valid: true},
		RunType: runType,
	}); err != nil {
		return "", fmt.Errorf("create sync run: %w", err)
	}

	switch runType {
	case db.RunTypeIncremental:
		err = q.ResetEligibleIncrementalSyncStateToPending(ctx)
	default:
		err = q.ResetAllSyncStateToPending(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("queue schemes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id.String(), nil
}

// SeedTracked registers scheme codes with the sync queue. Codes already
// known keep their state.
func SeedTracked(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	q := db.New(pool)
	for _, c := range codes {
		if _, err := parseCode(c); err != nil {
			return err
		}
		if err := q.SeedSyncState(ctx, c); err != nil {
			return fmt.Errorf("seed %s: %w", c, err)
		}
	}
	return nil
}
