package api

import (
	"net/http"

	"mf-returns-service/internal/calculator"
)

func (s *Server) handleRankings() http.HandlerFunc {
	type fund struct {
		Rank         int      `json:"rank"`
		SchemeCode   string   `json:"schemeCode"`
		SchemeName   string   `json:"schemeName"`
		Return       float64  `json:"return"`
		StartDate    string   `json:"startDate"`
		EndDate      string   `json:"endDate"`
		AnnualReturn *float64 `json:"annualizedReturn"`
		MaxDrawdown  *float64 `json:"maxDrawdown"`
	}
	type resp struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Showing int    `json:"showing"`
		Funds   []fund `json:"funds"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		from, err := requireDate("from", qs.Get("from"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		to, err := requireDate("to", qs.Get("to"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := parseLimit(qs.Get("limit"), 10)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ranked, err := s.calc.Rank(r.Context(), calculator.RankQuery{From: from, To: to, Limit: limit})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := resp{From: isoDate(from), To: isoDate(to), Funds: make([]fund, 0, len(ranked))}
		for i, e := range ranked {
			out.Funds = append(out.Funds, fund{
				Rank:         i + 1,
				SchemeCode:   e.SchemeCode,
				SchemeName:   e.SchemeName,
				Return:       round2(e.SimpleReturn),
				StartDate:    isoDate(e.Result.Start.Date),
				EndDate:      isoDate(e.Result.End.Date),
				AnnualReturn: round2Ptr(e.Result.AnnualizedReturn),
				MaxDrawdown:  round2Ptr(e.Result.MaxDrawdown),
			})
		}
		out.Showing = len(out.Funds)
		writeJSON(w, http.StatusOK, out)
	}
}
