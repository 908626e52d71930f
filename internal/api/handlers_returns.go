package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/dateutil"
)

func (s *Server) handleReturns() http.HandlerFunc {
	type resp struct {
		SchemeCode       string   `json:"schemeCode"`
		SchemeName       string   `json:"schemeName"`
		Period           string   `json:"period,omitempty"`
		Available        bool     `json:"available"`
		TargetStartDate  string   `json:"targetStartDate"`
		StartDate        string   `json:"startDate,omitempty"`
		StartNAV         *float64 `json:"startNAV,omitempty"`
		EndDate          string   `json:"endDate"`
		EndNAV           float64  `json:"endNAV"`
		Days             int      `json:"days,omitempty"`
		SimpleReturn     *float64 `json:"simpleReturn"`
		AnnualizedReturn *float64 `json:"annualizedReturn"`
		MaxDrawdown      *float64 `json:"maxDrawdown"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		period := strings.ToLower(strings.TrimSpace(qs.Get("period")))
		from, err := parseDateField("from", qs.Get("from"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		to, err := parseDateField("to", qs.Get("to"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if period != "" && (!from.IsZero() || !to.IsZero()) {
			s.writeError(w, r, analytics.Validation("use either period or from/to, not both"))
			return
		}

		meta, res, err := s.calc.Returns(r.Context(), chi.URLParam(r, "code"),
			analytics.ReturnQuery{Period: period, From: from, To: to})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := resp{
			SchemeCode:       meta.Code,
			SchemeName:       meta.Name,
			Period:           res.Period,
			Available:        res.Available,
			TargetStartDate:  isoDate(res.TargetStart),
			EndDate:          isoDate(res.End.Date),
			EndNAV:           res.End.NAV,
			Days:             res.Days,
			SimpleReturn:     round2Ptr(res.SimpleReturn),
			AnnualizedReturn: round2Ptr(res.AnnualizedReturn),
			MaxDrawdown:      round2Ptr(res.MaxDrawdown),
		}
		if res.Available {
			out.StartDate = isoDate(res.Start.Date)
			startNAV := res.Start.NAV
			out.StartNAV = &startNAV
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleRollingReturns() http.HandlerFunc {
	type point struct {
		Date   string  `json:"date"`
		Return float64 `json:"return"`
	}
	type resp struct {
		SchemeCode    string  `json:"schemeCode"`
		SchemeName    string  `json:"schemeName"`
		Window        string  `json:"window"`
		Step          string  `json:"step"`
		RangeStart    string  `json:"rangeStart"`
		RangeEnd      string  `json:"rangeEnd"`
		Count         int     `json:"count"`
		AverageReturn float64 `json:"averageReturn"`
		MaxReturn     float64 `json:"maxReturn"`
		MinReturn     float64 `json:"minReturn"`
		MedianReturn  float64 `json:"medianReturn"`
		P25           float64 `json:"p25"`
		P75           float64 `json:"p75"`
		StdDev        float64 `json:"stdDev"`
		RollingSeries []point `json:"rollingSeries"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()

		q := analytics.RollingQuery{Step: analytics.Step(strings.ToLower(strings.TrimSpace(qs.Get("step"))))}
		var err error
		if q.Window, err = periodParam(qs.Get("window"), "1y", "window"); err != nil {
			s.writeError(w, r, err)
			return
		}
		if q.Duration, err = periodParam(qs.Get("duration"), "5y", "duration"); err != nil {
			s.writeError(w, r, err)
			return
		}
		if q.Start, err = parseDateField("start", qs.Get("start")); err != nil {
			s.writeError(w, r, err)
			return
		}

		meta, res, err := s.calc.Rolling(r.Context(), chi.URLParam(r, "code"), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := resp{
			SchemeCode:    meta.Code,
			SchemeName:    meta.Name,
			Window:        res.Window.String(),
			Step:          string(res.Step),
			RangeStart:    isoDate(res.RangeStart),
			RangeEnd:      isoDate(res.RangeEnd),
			Count:         res.Count,
			AverageReturn: round2(res.Average),
			MaxReturn:     round2(res.Max),
			MinReturn:     round2(res.Min),
			MedianReturn:  round2(res.Median),
			P25:           round2(res.P25),
			P75:           round2(res.P75),
			StdDev:        round2(res.StdDev),
			RollingSeries: make([]point, 0, len(res.Series)),
		}
		for _, p := range res.Series {
			out.RollingSeries = append(out.RollingSeries, point{Date: isoDate(p.Date), Return: round2(p.CAGR)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func periodParam(v, def, name string) (dateutil.Period, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		v = def
	}
	p, err := dateutil.ParsePeriod(v)
	if err != nil {
		return dateutil.Period{}, analytics.Validation(name + ": " + err.Error())
	}
	return p, nil
}
