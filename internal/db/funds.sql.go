package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const upsertFund = `
INSERT INTO funds (scheme_code, scheme_name, amc, category, scheme_type, updated_at)
VALUES ($1, $2, $3, $4, $5, now() AT TIME ZONE 'utc')
ON CONFLICT (scheme_code) DO UPDATE SET
    scheme_name = COALESCE(NULLIF(EXCLUDED.scheme_name, ''), funds.scheme_name),
    amc         = COALESCE(NULLIF(EXCLUDED.amc, ''), funds.amc),
    category    = COALESCE(NULLIF(EXCLUDED.category, ''), funds.category),
    scheme_type = COALESCE(NULLIF(EXCLUDED.scheme_type, ''), funds.scheme_type),
    updated_at  = EXCLUDED.updated_at
`

type UpsertFundParams struct {
	SchemeCode string
	SchemeName string
	Amc        string
	Category   string
	SchemeType string
}

// UpsertFund never blanks out stored metadata: empty fields keep the current value.
func (q *Queries) UpsertFund(ctx context.Context, arg UpsertFundParams) error {
	_, err := q.db.Exec(ctx, upsertFund,
		arg.SchemeCode, arg.SchemeName, arg.Amc, arg.Category, arg.SchemeType)
	return err
}

const getFund = `
SELECT scheme_code, scheme_name, amc, category, scheme_type, updated_at
FROM funds
WHERE scheme_code = $1
`

func (q *Queries) GetFund(ctx context.Context, schemeCode string) (Fund, error) {
	row := q.db.QueryRow(ctx, getFund, schemeCode)
	var i Fund
	err := row.Scan(&i.SchemeCode, &i.SchemeName, &i.Amc, &i.Category, &i.SchemeType, &i.UpdatedAt)
	return i, err
}

const listFunds = `
SELECT scheme_code, scheme_name, amc, category, scheme_type, updated_at
FROM funds
WHERE ($1::text IS NULL OR category = $1)
  AND ($2::text IS NULL OR amc = $2)
ORDER BY scheme_name
`

type ListFundsParams struct {
	Category pgtype.Text
	Amc      pgtype.Text
}

func (q *Queries) ListFunds(ctx context.Context, arg ListFundsParams) ([]Fund, error) {
	rows, err := q.db.Query(ctx, listFunds, arg.Category, arg.Amc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Fund
	for rows.Next() {
		var i Fund
		if err := rows.Scan(&i.SchemeCode, &i.SchemeName, &i.Amc, &i.Category, &i.SchemeType, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertNavHistory = `
INSERT INTO nav_history (scheme_code, nav_date, nav_value)
VALUES ($1, $2, $3::numeric)
ON CONFLICT (scheme_code, nav_date) DO UPDATE SET nav_value = EXCLUDED.nav_value
`

type UpsertNavHistoryParams struct {
	SchemeCode string
	NavDate    pgtype.Date
	NavValue   decimal.Decimal
}

func (q *Queries) UpsertNavHistory(ctx context.Context, arg UpsertNavHistoryParams) error {
	_, err := q.db.Exec(ctx, upsertNavHistory, arg.SchemeCode, arg.NavDate, arg.NavValue.String())
	return err
}

const listNavHistoryForScheme = `
SELECT scheme_code, nav_date, nav_value::text
FROM nav_history
WHERE scheme_code = $1
ORDER BY nav_date
`

func (q *Queries) ListNavHistoryForScheme(ctx context.Context, schemeCode string) ([]NavHistory, error) {
	rows, err := q.db.Query(ctx, listNavHistoryForScheme, schemeCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NavHistory
	for rows.Next() {
		i, err := scanNavHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getLatestNav = `
SELECT scheme_code, nav_date, nav_value::text
FROM nav_history
WHERE scheme_code = $1
ORDER BY nav_date DESC
LIMIT 1
`

func (q *Queries) GetLatestNav(ctx context.Context, schemeCode string) (NavHistory, error) {
	return scanNavHistory(q.db.QueryRow(ctx, getLatestNav, schemeCode))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNavHistory(row scanner) (NavHistory, error) {
	var (
		i   NavHistory
		raw string
	)
	if err := row.Scan(&i.SchemeCode, &i.NavDate, &raw); err != nil {
		return NavHistory{}, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return NavHistory{}, fmt.Errorf("nav_value %q: %w", raw, err)
	}
	i.NavValue = v
	return i, nil
}
