package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"mf-returns-service/internal/dateutil"
	"mf-returns-service/internal/db"
)

func (s *Server) handleSyncStatus() http.HandlerFunc {
	type run struct {
		RunID      string `json:"run_id,omitempty"`
		RunType    string `json:"run_type,omitempty"`
		Status     string `json:"status,omitempty"`
		StartedAt  string `json:"started_at,omitempty"`
		FinishedAt string `json:"finished_at,omitempty"`
		Error      string `json:"error_summary,omitempty"`
	}

	type scheme struct {
		SchemeCode     string `json:"scheme_code"`
		Status         string `json:"status"`
		LastSyncedDate string `json:"last_synced_date,omitempty"`
		RetryCount     int32  `json:"retry_count"`
		LastError      string `json:"last_error,omitempty"`
		LastAttemptAt  string `json:"last_attempt_at,omitempty"`
	}

	type resp struct {
		LatestRun *run             `json:"latest_run"`
		Counts    map[string]int64 `json:"counts"`
		Schemes   []scheme         `json:"schemes"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := db.New(s.pool)

		out := resp{Counts: map[string]int64{}, Schemes: []scheme{}}

		if latest, err := q.GetLatestSyncRun(ctx); err == nil {
			out.LatestRun = &run{
				RunType:    latest.RunType,
				Status:     latest.Status,
				StartedAt:  formatTimestamp(latest.StartedAt),
				FinishedAt: formatTimestamp(latest.FinishedAt),
			}
			if latest.RunID.Valid {
				out.LatestRun.RunID = uuid.UUID(latest.RunID.Bytes).String()
			}
			if latest.ErrorSummary.Valid {
				out.LatestRun.Error = latest.ErrorSummary.String
			}
		}

		counts, err := q.CountSyncStateByStatus(ctx)
		if err != nil {
			s.log.Error("count sync state", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not read sync state"})
			return
		}
		for _, c := range counts {
			out.Counts[c.Status] = c.Count
		}

		states, err := q.ListSyncState(ctx)
		if err != nil {
			s.log.Error("list sync state", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not read sync state"})
			return
		}
		for _, st := range states {
			si := scheme{
				SchemeCode:    st.SchemeCode,
				Status:        st.Status,
				RetryCount:    st.RetryCount,
				LastAttemptAt: formatTimestamp(st.LastAttemptAt),
			}
			if st.LastSyncedDate.Valid {
				si.LastSyncedDate = st.LastSyncedDate.Time.Format(dateutil.ISOLayout)
			}
			if st.LastError.Valid {
				si.LastError = st.LastError.String
			}
			out.Schemes = append(out.Schemes, si)
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// handleSyncedFunds lists the funds held in the NAV mirror with their latest
// stored NAV.
func (s *Server) handleSyncedFunds() http.HandlerFunc {
	type fund struct {
		SchemeCode string   `json:"scheme_code"`
		SchemeName string   `json:"scheme_name"`
		AMC        string   `json:"amc"`
		Category   string   `json:"category"`
		LatestNAV  *float64 `json:"latest_nav,omitempty"`
		NAVDate    string   `json:"nav_date,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		category := strings.TrimSpace(r.URL.Query().Get("category"))
		amc := strings.TrimSpace(r.URL.Query().Get("amc"))

		q := db.New(s.pool)
		rows, err := q.ListFunds(r.Context(), db.ListFundsParams{
			Category: pgtype.Text{String: category, Valid: category != ""},
			Amc:      pgtype.Text{String: amc, Valid: amc != ""},
		})
		if err != nil {
			s.log.Error("list funds", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not list funds"})
			return
		}

		out := make([]fund, 0, len(rows))
		for _, f := range rows {
			item := fund{
				SchemeCode: f.SchemeCode,
				SchemeName: f.SchemeName,
				AMC:        f.Amc,
				Category:   f.Category,
			}
			if n, err := q.GetLatestNav(r.Context(), f.SchemeCode); err == nil {
				v := n.NavValue.InexactFloat64()
				item.LatestNAV = &v
				if n.NavDate.Valid {
					item.NAVDate = n.NavDate.Time.Format(dateutil.ISOLayout)
				}
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"funds": out})
	}
}

func formatTimestamp(ts pgtype.Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.UTC().Format(timeRFC3339)
}
