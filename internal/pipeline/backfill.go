package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"mf-returns-service/internal/db"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/nav"
)

func (r *BackfillRunner) backfillOne(ctx context.Context, st db.SyncState) error {
	code, err := parseCode(st.SchemeCode)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}

	resp, err := r.mf.GetScheme(ctx, code)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}

	last, n, err := r.store(ctx, st.SchemeCode, resp)
	if err != nil {
		return r.failSyncState(ctx, st, err)
	}
	if n == 0 {
		return r.failSyncState(ctx, st, fmt.Errorf("no usable nav rows returned"))
	}
	r.log.Debug("scheme backfilled", "scheme_code", st.SchemeCode, "rows", n, "last", last.Format(time.DateOnly))

	return db.New(r.pool).UpdateSyncStateSuccess(ctx, db.UpdateSyncStateSuccessParams{
		SchemeCode:     st.SchemeCode,
		LastSyncedDate: pgtype.Date{Time: last, Valid: true},
	})
}

// store writes the fund metadata and the cleaned NAV rows in one transaction
// and returns the newest stored date.
func (r *BackfillRunner) store(ctx context.Context, schemeCode string, resp mfapi.SchemeResponse) (time.Time, int, error) {
	points := nav.Clean(resp.Data)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return time.Time{}, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	q := db.New(tx)

	meta := resp.Meta
	if err := q.UpsertFund(ctx, db.UpsertFundParams{
		SchemeCode: schemeCode,
		SchemeName: meta.SchemeName,
		Amc:        meta.FundHouse,
		Category:   meta.SchemeCategory,
		SchemeType: meta.SchemeType,
	}); err != nil {
		return time.Time{}, 0, fmt.Errorf("upsert fund: %w", err)
	}

	var last time.Time
	for _, p := range points {
		if err := q.UpsertNavHistory(ctx, db.UpsertNavHistoryParams{
			SchemeCode: schemeCode,
			NavDate:    pgtype.Date{Time: p.Date, Valid: true},
			NavValue:   p.Value,
		}); err != nil {
			return time.Time{}, 0, fmt.Errorf("upsert nav %s: %w", p.Date.Format(time.DateOnly), err)
		}
		last = p.Date
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, 0, err
	}
	return last, len(points), nil
}

func (r *BackfillRunner) failSyncState(ctx context.Context, st db.SyncState, cause error) error {
	if err := db.New(r.pool).UpdateSyncStateAttempt(ctx, db.UpdateSyncStateAttemptParams{
		SchemeCode: st.SchemeCode,
		Status:     db.SyncStatusFailed,
		RetryCount: st.RetryCount + 1,
		LastError:  pgtype.Text{String: cause.Error(), Valid: true},
	}); err != nil {
		r.log.Error("record sync failure", "scheme_code", st.SchemeCode, "error", err)
	}
	return cause
}

func parseCode(s string) (int64, error) {
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("invalid scheme_code %q", s)
	}
	return code, nil
}
