package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/db"
	"mf-returns-service/internal/nav"
)

// NavStore serves scheme histories from the nav_history mirror.
type NavStore struct {
	q *db.Queries
}

func NewNavStore(dbtx db.DBTX) *NavStore {
	return &NavStore{q: db.New(dbtx)}
}

func (s *NavStore) Scheme(ctx context.Context, code string) (nav.Scheme, error) {
	f, err := s.q.GetFund(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nav.Scheme{}, fmt.Errorf("scheme %s: %w", code, nav.ErrUnknownScheme)
	}
	if err != nil {
		return nav.Scheme{}, fmt.Errorf("get fund %s: %w", code, err)
	}

	rows, err := s.q.ListNavHistoryForScheme(ctx, code)
	if err != nil {
		return nav.Scheme{}, fmt.Errorf("list nav history %s: %w", code, err)
	}
	if len(rows) == 0 {
		return nav.Scheme{}, fmt.Errorf("scheme %s has no synced nav rows: %w", code, nav.ErrUnknownScheme)
	}

	out := nav.Scheme{
		Meta: nav.Meta{
			Code:      f.SchemeCode,
			Name:      f.SchemeName,
			FundHouse: f.Amc,
			Category:  f.Category,
			Type:      f.SchemeType,
		},
		Rows: make([]nav.Raw, 0, len(rows)),
	}
	for _, r := range rows {
		if !r.NavDate.Valid {
			continue
		}
		out.Rows = append(out.Rows, nav.Raw{
			Date: r.NavDate.Time.Format(dateutil.NAVLayout),
			NAV:  r.NavValue.String(),
		})
	}
	return out, nil
}
