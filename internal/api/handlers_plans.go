package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"mf-returns-service/internal/analytics"
)

type sipRequest struct {
	Amount                *float64 `json:"amount"`
	InitialAmount         *float64 `json:"initialAmount"`
	AnnualIncreasePercent *float64 `json:"annualIncreasePercent"`
	From                  string   `json:"from"`
	To                    string   `json:"to"`
	Valuation             string   `json:"valuation"`
}

type swpRequest struct {
	InitialInvestment     *float64 `json:"initialInvestment"`
	WithdrawalAmount      *float64 `json:"withdrawalAmount"`
	InitialWithdrawal     *float64 `json:"initialWithdrawal"`
	AnnualIncreasePercent *float64 `json:"annualIncreasePercent"`
	From                  string   `json:"from"`
	To                    string   `json:"to"`
	Valuation             string   `json:"valuation"`
}

type growthPoint struct {
	Date     string  `json:"date"`
	Invested float64 `json:"invested"`
	Value    float64 `json:"value"`
}

type sipResponse struct {
	SchemeCode       string        `json:"schemeCode"`
	SchemeName       string        `json:"schemeName"`
	From             string        `json:"from"`
	To               string        `json:"to"`
	Installments     int           `json:"installments"`
	TotalInvested    float64       `json:"totalInvested"`
	TotalUnits       float64       `json:"totalUnits"`
	ValuationDate    string        `json:"valuationDate"`
	ValuationNAV     float64       `json:"valuationNAV"`
	CurrentValue     float64       `json:"currentValue"`
	AbsoluteReturn   float64       `json:"absoluteReturn"`
	AnnualizedReturn *float64      `json:"annualizedReturn"`
	InvestmentGrowth []growthPoint `json:"investmentGrowth"`
}

type withdrawalPoint struct {
	Date           string  `json:"date"`
	TotalWithdrawn float64 `json:"totalWithdrawn"`
	Value          float64 `json:"value"`
}

type swpResponse struct {
	SchemeCode        string            `json:"schemeCode"`
	SchemeName        string            `json:"schemeName"`
	From              string            `json:"from"`
	To                string            `json:"to"`
	InitialInvestment float64           `json:"initialInvestment"`
	InitialNAV        float64           `json:"initialNAV"`
	Withdrawals       int               `json:"withdrawals"`
	TotalWithdrawn    float64           `json:"totalWithdrawn"`
	RemainingUnits    float64           `json:"remainingUnits"`
	FinalValue        float64           `json:"finalValue"`
	IsPortfolioActive bool              `json:"isPortfolioActive"`
	ExhaustedOn       string            `json:"exhaustedOn,omitempty"`
	Trace             []withdrawalPoint `json:"trace"`
}

func (s *Server) handleSIP(stepUp bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sipRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		amount := req.Amount
		if stepUp && req.InitialAmount != nil {
			amount = req.InitialAmount
		}
		if amount == nil || (stepUp && req.AnnualIncreasePercent == nil) {
			s.writeError(w, r, analytics.Validation("missing required fields"))
			return
		}
		q := analytics.SIPQuery{Amount: *amount, Valuation: analytics.Valuation(req.Valuation)}
		if stepUp {
			q.AnnualIncreasePercent = *req.AnnualIncreasePercent
		}
		var err error
		if q.From, err = requireDate("from", req.From); err != nil {
			s.writeError(w, r, err)
			return
		}
		if q.To, err = requireDate("to", req.To); err != nil {
			s.writeError(w, r, err)
			return
		}

		code := chi.URLParam(r, "code")
		run := s.calc.SIP
		if stepUp {
			run = s.calc.StepUpSIP
		}
		meta, res, err := run(r.Context(), code, q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := sipResponse{
			SchemeCode:       meta.Code,
			SchemeName:       meta.Name,
			From:             isoDate(res.From),
			To:               isoDate(res.To),
			Installments:     res.Installments,
			TotalInvested:    round2(res.TotalInvested),
			TotalUnits:       roundUnits(res.TotalUnits),
			ValuationDate:    isoDate(res.ValuationNAV.Date),
			ValuationNAV:     res.ValuationNAV.NAV,
			CurrentValue:     round2(res.CurrentValue),
			AbsoluteReturn:   round2(res.AbsoluteReturn),
			AnnualizedReturn: round2Ptr(res.AnnualizedReturn),
			InvestmentGrowth: make([]growthPoint, 0, len(res.Growth)),
		}
		for _, g := range res.Growth {
			out.InvestmentGrowth = append(out.InvestmentGrowth, growthPoint{
				Date:     isoDate(g.Date),
				Invested: round2(g.Invested),
				Value:    round2(g.Value),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleSWP(stepUp bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req swpRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		withdrawal := req.WithdrawalAmount
		if stepUp && req.InitialWithdrawal != nil {
			withdrawal = req.InitialWithdrawal
		}
		if req.InitialInvestment == nil || withdrawal == nil || (stepUp && req.AnnualIncreasePercent == nil) {
			s.writeError(w, r, analytics.Validation("missing required fields"))
			return
		}
		q := analytics.SWPQuery{
			InitialInvestment: *req.InitialInvestment,
			Withdrawal:        *withdrawal,
			Valuation:         analytics.Valuation(req.Valuation),
		}
		if stepUp {
			q.AnnualIncreasePercent = *req.AnnualIncreasePercent
		}
		var err error
		if q.From, err = requireDate("from", req.From); err != nil {
			s.writeError(w, r, err)
			return
		}
		if q.To, err = requireDate("to", req.To); err != nil {
			s.writeError(w, r, err)
			return
		}

		code := chi.URLParam(r, "code")
		run := s.calc.SWP
		if stepUp {
			run = s.calc.StepUpSWP
		}
		meta, res, err := run(r.Context(), code, q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := swpResponse{
			SchemeCode:        meta.Code,
			SchemeName:        meta.Name,
			From:              isoDate(res.From),
			To:                isoDate(res.To),
			InitialInvestment: round2(res.InitialInvestment),
			InitialNAV:        res.InitialNAV.NAV,
			Withdrawals:       res.Withdrawals,
			TotalWithdrawn:    round2(res.TotalWithdrawn),
			RemainingUnits:    roundUnits(res.TotalUnits),
			FinalValue:        round2(res.FinalValue),
			IsPortfolioActive: res.IsPortfolioActive,
			Trace:             make([]withdrawalPoint, 0, len(res.Trace)),
		}
		if res.ExhaustedOn != nil {
			out.ExhaustedOn = isoDate(*res.ExhaustedOn)
		}
		for _, p := range res.Trace {
			out.Trace = append(out.Trace, withdrawalPoint{
				Date:           isoDate(p.Date),
				TotalWithdrawn: round2(p.Withdrawn),
				Value:          round2(p.Value),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// roundUnits keeps four decimals, the precision registrars report units at.
func roundUnits(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}
