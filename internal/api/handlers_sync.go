package api

import (
	"errors"
	"net/http"
	"strings"

	"mf-returns-service/internal/db"
	"mf-returns-service/internal/pipeline"
)

func (s *Server) handleSyncTrigger() http.HandlerFunc {
	type resp struct {
		RunID   string `json:"run_id"`
		RunType string `json:"run_type"`
	}
	type errResp struct {
		Error string `json:"error"`
		RunID string `json:"run_id,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		runType := db.RunTypeManual
		if strings.EqualFold(r.URL.Query().Get("mode"), "incremental") {
			runType = db.RunTypeIncremental
		}

		runID, err := pipeline.Enqueue(r.Context(), s.pool, runType)
		if errors.Is(err, pipeline.ErrRunActive) {
			writeJSON(w, http.StatusConflict, errResp{Error: err.Error(), RunID: runID})
			return
		}
		if err != nil {
			s.log.Error("enqueue sync run", "error", err)
			writeJSON(w, http.StatusInternalServerError, errResp{Error: "could not enqueue sync run"})
			return
		}
		writeJSON(w, http.StatusAccepted, resp{RunID: runID, RunType: runType})
	}
}
