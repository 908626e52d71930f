package api

import "github.com/go-chi/chi/v5"

func (s *Server) routes() {
	s.r.Get("/healthz", s.handleHealth())

	s.r.Get("/funds", s.handleFundsList())
	s.r.Get("/funds/search", s.handleFundsSearch())
	s.r.Get("/rankings", s.handleRankings())

	s.r.Route("/schemes/{code}", func(r chi.Router) {
		r.Get("/", s.handleScheme())
		r.Get("/returns", s.handleReturns())
		r.Get("/rolling-returns", s.handleRollingReturns())
		r.Post("/sip", s.handleSIP(false))
		r.Post("/step-up-sip", s.handleSIP(true))
		r.Post("/swp", s.handleSWP(false))
		r.Post("/step-up-swp", s.handleSWP(true))
	})

	if s.pool != nil {
		s.r.Post("/sync/trigger", s.handleSyncTrigger())
		s.r.Get("/sync/status", s.handleSyncStatus())
		s.r.Get("/sync/funds", s.handleSyncedFunds())
	}
}
