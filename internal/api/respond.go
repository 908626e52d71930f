package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/dateutil"
)

const timeRFC3339 = "2006-01-02T15:04:05Z07:00"

type errorBody struct {
	Error string         `json:"error"`
	Kind  analytics.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind analytics.Kind) int {
	switch kind {
	case analytics.KindValidation, analytics.KindOutOfRange:
		return http.StatusBadRequest
	case analytics.KindInsufficientData:
		return http.StatusNotFound
	case analytics.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps calculator failures to HTTP. Only the user-facing message
// of a classified error is returned; wrapped causes go to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *analytics.Error
	if errors.As(err, &ae) {
		status := statusFor(ae.Kind)
		if status >= http.StatusInternalServerError || ae.Err != nil {
			s.log.Warn("request failed", "path", r.URL.Path, "kind", ae.Kind, "error", err)
		}
		writeJSON(w, status, errorBody{Error: ae.Msg, Kind: ae.Kind})
		return
	}
	s.log.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		return analytics.Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// round2 rounds half away from zero at two decimals.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := round2(*v)
	return &f
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateutil.ISOLayout)
}

func parseDateField(name, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := dateutil.ParseISO(v)
	if err != nil {
		return time.Time{}, analytics.Validation(fmt.Sprintf("%s must be a YYYY-MM-DD date", name))
	}
	return t, nil
}

func requireDate(name, v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, analytics.Validation(fmt.Sprintf("%s is required", name))
	}
	return parseDateField(name, v)
}

func parseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, analytics.Validation("limit must be a positive integer")
	}
	return v, nil
}
