package calculator

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/mfapi"
)

// Lister provides the fund directory used by Rank; *catalog.Catalog satisfies it.
type Lister interface {
	List(ctx context.Context, filter string) ([]mfapi.SchemeListItem, error)
}

const defaultRankLimit = 10

type RankQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

type RankEntry struct {
	SchemeCode   string
	SchemeName   string
	SimpleReturn float64
	Result       analytics.ReturnResult
}

// Rank computes the explicit-range simple return for the first MaxFunds
// directory entries and returns the best Limit, highest first. Funds whose
// return is unavailable or fails to compute are left out.
func (s *Service) Rank(ctx context.Context, q RankQuery) ([]RankEntry, error) {
	if s.dir == nil {
		return nil, analytics.Upstream(errors.New("fund directory not configured"))
	}
	rq := analytics.ReturnQuery{From: q.From, To: q.To}
	if err := rq.Validate(); err != nil {
		return nil, err
	}
	if q.Limit < 0 {
		return nil, analytics.Validation("limit must be positive")
	}
	if q.Limit == 0 {
		q.Limit = defaultRankLimit
	}

	funds, err := s.dir.List(ctx, "")
	if err != nil {
		return nil, analytics.Upstream(err)
	}
	if len(funds) > s.opts.MaxFunds {
		funds = funds[:s.opts.MaxFunds]
	}

	results := make([]*RankEntry, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, f := range funds {
		i, f := i, f
		g.Go(func() error {
			code := strconv.FormatInt(f.SchemeCode, 10)
			_, res, err := s.Returns(gctx, code, rq)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Debug("rank skip", "scheme_code", code, "error", err)
				return nil
			}
			if !res.Available || res.SimpleReturn == nil {
				return nil
			}
			results[i] = &RankEntry{
				SchemeCode:   code,
				SchemeName:   f.SchemeName,
				SimpleReturn: *res.SimpleReturn,
				Result:       res,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RankEntry, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SimpleReturn > out[j].SimpleReturn })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
