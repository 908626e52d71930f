package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/nav"
)

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleFundsList() http.HandlerFunc {
	type resp struct {
		Count int                    `json:"count"`
		Funds []mfapi.SchemeListItem `json:"funds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.dir.List(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			s.writeError(w, r, analytics.Upstream(err))
			return
		}
		writeJSON(w, http.StatusOK, resp{Count: len(items), Funds: items})
	}
}

func (s *Server) handleFundsSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			s.writeError(w, r, analytics.Validation("q is required"))
			return
		}
		items, err := s.dir.Search(r.Context(), q)
		if err != nil {
			s.writeError(w, r, analytics.Upstream(err))
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) handleScheme() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := s.calc.Scheme(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if sc.Rows == nil {
			sc.Rows = []nav.Raw{}
		}
		writeJSON(w, http.StatusOK, sc)
	}
}
