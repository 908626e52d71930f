package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/db"
)

// incrementalOne fetches only the days after last_synced_date. A scheme that
// was never synced gets a full backfill.
func (r *BackfillRunner) incrementalOne(ctx context.Context, st db.SyncState) error {
	if !st.LastSyncedDate.Valid {
		return r.backfillOne(ctx, st)
	}

	code, err := parseCode(st.SchemeCode)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}

	synced := dateutil.Day(st.LastSyncedDate.Time)
	start := synced.AddDate(0, 0, 1)
	end := dateutil.Day(r.now())
	q := db.New(r.pool)
	if start.After(end) {
		return q.UpdateSyncStateSuccess(ctx, db.UpdateSyncStateSuccessParams{
			SchemeCode:     st.SchemeCode,
			LastSyncedDate: st.LastSyncedDate,
		})
	}

	resp, err := r.mf.GetSchemeRange(ctx, code, start, end)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}

	last, _, err := r.store(ctx, st.SchemeCode, resp)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}
	if last.Before(synced) {
		last = synced
	}
	return q.UpdateSyncStateSuccess(ctx, db.UpdateSyncStateSuccessParams{
		SchemeCode:     st.SchemeCode,
		LastSyncedDate: pgtype.Date{Time: last, Valid: true},
	})
}
