// Package calculator resolves a scheme's NAV history from the configured
// source and runs the return engines over it. Every call fetches its own
// series, so calls share no mutable state.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/nav"
)

// Source supplies a scheme's metadata and raw NAV rows. The upstream client
// and the Postgres mirror both implement it.
type Source interface {
	Scheme(ctx context.Context, code string) (nav.Scheme, error)
}

type Options struct {
	Valuation   analytics.Valuation
	Step        analytics.Step
	MaxFunds    int
	Concurrency int
	Logger      *slog.Logger
}

type Service struct {
	src  Source
	dir  Lister
	opts Options
	log  *slog.Logger
}

// New builds a service. dir may be nil, in which case Rank is unavailable.
func New(src Source, dir Lister, opts Options) *Service {
	if !opts.Valuation.Valid() {
		opts.Valuation = analytics.ValueAtLatest
	}
	if !opts.Step.Valid() {
		opts.Step = analytics.StepDay
	}
	if opts.MaxFunds <= 0 {
		opts.MaxFunds = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, dir: dir, opts: opts, log: log.With("component", "calculator")}
}

// Scheme returns the source's view of a scheme without cleaning it.
func (s *Service) Scheme(ctx context.Context, code string) (nav.Scheme, error) {
	if err := validateCode(code); err != nil {
		return nav.Scheme{}, err
	}
	sc, err := s.src.Scheme(ctx, code)
	if err != nil {
		return nav.Scheme{}, sourceError(code, err)
	}
	return sc, nil
}

func (s *Service) load(ctx context.Context, code string) (nav.Meta, nav.Series, error) {
	sc, err := s.Scheme(ctx, code)
	if err != nil {
		return nav.Meta{}, nav.Series{}, err
	}
	series, err := nav.Normalize(sc.Rows)
	if err != nil {
		return nav.Meta{}, nav.Series{}, analytics.InsufficientData(
			fmt.Sprintf("scheme %s has fewer than 2 usable NAV points", code), err)
	}
	if sc.Meta.Code == "" {
		sc.Meta.Code = code
	}
	return sc.Meta, series, nil
}

func (s *Service) Returns(ctx context.Context, code string, q analytics.ReturnQuery) (nav.Meta, analytics.ReturnResult, error) {
	if err := q.Validate(); err != nil {
		return nav.Meta{}, analytics.ReturnResult{}, err
	}
	meta, series, err := s.load(ctx, code)
	if err != nil {
		return nav.Meta{}, analytics.ReturnResult{}, err
	}
	res, err := analytics.PointReturn(series, q)
	return meta, res, err
}

// SIP runs a flat SIP; any step-up percentage on q is ignored.
func (s *Service) SIP(ctx context.Context, code string, q analytics.SIPQuery) (nav.Meta, analytics.SIPResult, error) {
	q.AnnualIncreasePercent = 0
	return s.StepUpSIP(ctx, code, q)
}

func (s *Service) StepUpSIP(ctx context.Context, code string, q analytics.SIPQuery) (nav.Meta, analytics.SIPResult, error) {
	if q.Valuation == "" {
		q.Valuation = s.opts.Valuation
	}
	if err := q.Validate(); err != nil {
		return nav.Meta{}, analytics.SIPResult{}, err
	}
	meta, series, err := s.load(ctx, code)
	if err != nil {
		return nav.Meta{}, analytics.SIPResult{}, err
	}
	res, err := analytics.SimulateSIP(series, q)
	return meta, res, err
}

// SWP runs a flat SWP; any step-up percentage on q is ignored.
func (s *Service) SWP(ctx context.Context, code string, q analytics.SWPQuery) (nav.Meta, analytics.SWPResult, error) {
	q.AnnualIncreasePercent = 0
	return s.StepUpSWP(ctx, code, q)
}

func (s *Service) StepUpSWP(ctx context.Context, code string, q analytics.SWPQuery) (nav.Meta, analytics.SWPResult, error) {
	if q.Valuation == "" {
		q.Valuation = s.opts.Valuation
	}
	if err := q.Validate(); err != nil {
		return nav.Meta{}, analytics.SWPResult{}, err
	}
	meta, series, err := s.load(ctx, code)
	if err != nil {
		return nav.Meta{}, analytics.SWPResult{}, err
	}
	res, err := analytics.SimulateSWP(series, q)
	return meta, res, err
}

func (s *Service) Rolling(ctx context.Context, code string, q analytics.RollingQuery) (nav.Meta, analytics.RollingResult, error) {
	if q.Step == "" {
		q.Step = s.opts.Step
	}
	if err := q.Validate(); err != nil {
		return nav.Meta{}, analytics.RollingResult{}, err
	}
	meta, series, err := s.load(ctx, code)
	if err != nil {
		return nav.Meta{}, analytics.RollingResult{}, err
	}
	res, err := analytics.Rolling(series, q)
	return meta, res, err
}

func validateCode(code string) error {
	code = strings.TrimSpace(code)
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil || n <= 0 {
		return analytics.Validation(fmt.Sprintf("scheme code %q must be a positive integer", code))
	}
	return nil
}

func sourceError(code string, err error) error {
	switch {
	case errors.Is(err, nav.ErrUnknownScheme):
		return analytics.InsufficientData(fmt.Sprintf("scheme %s not found", code), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return analytics.Upstream(fmt.Errorf("fetch scheme %s: %w", code, err))
	}
}
