// Package catalog caches the upstream fund directory and search results.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"mf-returns-service/internal/mfapi"
)

// Directory is the upstream listing surface; *mfapi.Client satisfies it.
type Directory interface {
	ListSchemes(ctx context.Context) ([]mfapi.SchemeListItem, error)
	Search(ctx context.Context, q string) ([]mfapi.SchemeListItem, error)
}

const listKey = "list:"

type entry struct {
	items   []mfapi.SchemeListItem
	expires time.Time
}

type Catalog struct {
	dir   Directory
	ttl   time.Duration
	cache *lru.Cache
	group singleflight.Group
	now   func() time.Time
}

func New(dir Directory, ttl time.Duration, size int) (*Catalog, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	return &Catalog{dir: dir, ttl: ttl, cache: c, now: time.Now}, nil
}

// List returns the full directory, optionally narrowed to names containing
// filter (case-insensitive).
func (c *Catalog) List(ctx context.Context, filter string) ([]mfapi.SchemeListItem, error) {
	items, err := c.load(ctx, listKey, func(ctx context.Context) ([]mfapi.SchemeListItem, error) {
		return c.dir.ListSchemes(ctx)
	})
	if err != nil {
		return nil, err
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return items, nil
	}
	out := make([]mfapi.SchemeListItem, 0)
	for _, it := range items {
		if containsFold(it.SchemeName, filter) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *Catalog) Search(ctx context.Context, q string) ([]mfapi.SchemeListItem, error) {
	q = strings.TrimSpace(q)
	key := "search:" + strings.ToLower(q)
	return c.load(ctx, key, func(ctx context.Context) ([]mfapi.SchemeListItem, error) {
		return c.dir.Search(ctx, q)
	})
}

func (c *Catalog) load(
	ctx context.Context,
	key string,
	fetch func(context.Context) ([]mfapi.SchemeListItem, error),
) ([]mfapi.SchemeListItem, error) {
	if v, ok := c.cache.Get(key); ok {
		e := v.(entry)
		if c.now().Before(e.expires) {
			return e.items, nil
		}
		c.cache.Remove(key)
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		items, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []mfapi.SchemeListItem{}
		}
		c.cache.Add(key, entry{items: items, expires: c.now().Add(c.ttl)})
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]mfapi.SchemeListItem), nil
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
