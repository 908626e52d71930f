// Package ratelimiter enforces fixed-window request quotas for calls to the
// upstream NAV API. Window counters live in Postgres so the API, worker and
// cron processes share one budget.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mf-returns-service/internal/db"
)

type WindowType string

const (
	WindowSecond WindowType = "second"
	WindowMinute WindowType = "minute"
	WindowHour   WindowType = "hour"
)

type WindowConfig struct {
	Type     WindowType
	Duration time.Duration
	Limit    int32
}

type Config struct {
	Now     func() time.Time
	Windows []WindowConfig
	Logger  *slog.Logger
}

// DefaultConfig matches the published mfapi.in fair-use quotas.
func DefaultConfig() Config {
	return Config{
		Now: time.Now,
		Windows: []WindowConfig{
			{Type: WindowSecond, Duration: time.Second, Limit: 2},
			{Type: WindowMinute, Duration: time.Minute, Limit: 50},
			{Type: WindowHour, Duration: time.Hour, Limit: 300},
		},
	}
}

func (c Config) validate() error {
	if len(c.Windows) == 0 {
		return fmt.Errorf("at least one window is required")
	}
	seen := make(map[WindowType]bool, len(c.Windows))
	for _, w := range c.Windows {
		if w.Type == "" {
			return fmt.Errorf("window type is required")
		}
		if seen[w.Type] {
			return fmt.Errorf("window %q configured twice", w.Type)
		}
		seen[w.Type] = true
		if w.Duration <= 0 {
			return fmt.Errorf("window %q duration must be > 0", w.Type)
		}
		if w.Limit <= 0 {
			return fmt.Errorf("window %q limit must be > 0", w.Type)
		}
	}
	return nil
}

type Limiter struct {
	pool *pgxpool.Pool
	cfg  Config
	log  *slog.Logger
}

func New(pool *pgxpool.Pool, cfg Config) (*Limiter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{pool: pool, cfg: cfg, log: log.With("component", "ratelimiter")}, nil
}

// Acquire blocks until every configured window admits one more request, or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok, err := l.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// TryAcquire takes one slot in every window or reports how long to wait.
func (l *Limiter) TryAcquire(ctx context.Context) (wait time.Duration, ok bool, err error) {
	now := l.cfg.Now().UTC()

	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("ratelimiter begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := db.New(tx)

	// Rows must exist before FOR UPDATE can serialize concurrent callers.
	for _, w := range l.cfg.Windows {
		if err := q.EnsureRateLimiterState(ctx, db.EnsureRateLimiterStateParams{
			WindowType:  string(w.Type),
			WindowStart: toPgTimestamp(now.Truncate(w.Duration)),
		}); err != nil {
			return 0, false, fmt.Errorf("ratelimiter ensure %s: %w", w.Type, err)
		}
	}

	states := make([]windowState, 0, len(l.cfg.Windows))
	for _, w := range l.cfg.Windows {
		st, err := q.GetRateLimiterStateForUpdate(ctx, string(w.Type))
		if err != nil {
			return 0, false, fmt.Errorf("ratelimiter read %s: %w", w.Type, err)
		}
		if !st.WindowStart.Valid {
			return 0, false, fmt.Errorf("ratelimiter: window_start invalid for %q", w.Type)
		}
		states = append(states, windowState{start: st.WindowStart.Time.UTC(), count: st.RequestCount})
	}

	d := evaluate(now, l.cfg.Windows, states)
	if !d.allowed {
		l.log.Debug("blocked", "window", d.blockedBy, "wait", d.wait)
		return d.wait, false, nil
	}

	for i, w := range l.cfg.Windows {
		if err := q.UpsertRateLimiterState(ctx, db.UpsertRateLimiterStateParams{
			WindowType:   string(w.Type),
			WindowStart:  toPgTimestamp(d.next[i].start),
			RequestCount: d.next[i].count,
		}); err != nil {
			return 0, false, fmt.Errorf("ratelimiter write %s: %w", w.Type, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("ratelimiter commit: %w", err)
	}
	return 0, true, nil
}

type windowState struct {
	start time.Time
	count int32
}

type decision struct {
	allowed   bool
	wait      time.Duration
	blockedBy WindowType
	next      []windowState
}

// evaluate applies one request to the persisted window states. Expired
// windows reset to the current boundary. When any window is full the
// longest remaining wait wins and no state changes.
func evaluate(now time.Time, windows []WindowConfig, states []windowState) decision {
	d := decision{allowed: true, next: make([]windowState, len(windows))}
	for i, w := range windows {
		st := states[i]
		if now.Sub(st.start) >= w.Duration {
			st = windowState{start: now.Truncate(w.Duration)}
		}
		if st.count >= w.Limit {
			d.allowed = false
			wait := st.start.Add(w.Duration).Sub(now)
			if wait < 0 {
				wait = 0
			}
			if wait >= d.wait {
				d.wait = wait
				d.blockedBy = w.Type
			}
			d.next[i] = st
			continue
		}
		d.next[i] = windowState{start: st.start, count: st.count + 1}
	}
	return d
}

func toPgTimestamp(t time.Time) pgtype.Timestamp {
	return pgtype.Timestamp{Time: t, Valid: true}
}
