// Package cached decorates a fetcher with a read-through TTL cache.
package cached

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"pnldash/internal/cache"
	"pnldash/internal/log"
	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

const (
	// DefaultTTL is the freshness window of a fetched table.
	DefaultTTL = 5 * time.Minute
	// DefaultTimeout bounds one shared upstream fetch.
	DefaultTimeout = 30 * time.Second
)

// Fetcher caches results of an underlying fetcher keyed by
// (sourceID, subRange). Errors are never cached.
type Fetcher struct {
	next   ports.TableFetcher
	store  *cache.LRUCache[table.Raw]
	group   singleflight.Group
	timeout time.Duration
	logger  *log.Logger
}

var (
	_ ports.TableFetcher = (*Fetcher)(nil)
	_ ports.Invalidator  = (*Fetcher)(nil)
)

// New wraps next. A non-positive ttl uses DefaultTTL.
func New(next ports.TableFetcher, size int, ttl time.Duration, logger *log.Logger) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Fetcher{
		next:    next,
		store:   cache.NewLRUCache[table.Raw](size, ttl),
		timeout: DefaultTimeout,
		logger:  logger.WithComponent(log.ComponentCache),
	}
}

// WithTimeout sets the deadline of upstream fetches. Non-positive values are
// ignored.
func (f *Fetcher) WithTimeout(d time.Duration) *Fetcher {
	if d > 0 {
		f.timeout = d
	}
	return f
}

// Store exposes the underlying cache for registration with a cache.Manager.
func (f *Fetcher) Store() *cache.LRUCache[table.Raw] { return f.store }

// Fetch serves a fresh cached table or fetches it. Concurrent misses for the
// same key share one upstream call. The returned grid is shared with the
// cache and must not be modified.
func (f *Fetcher) Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error) {
	raw, _, err := f.FetchWithInfo(ctx, sourceID, subRange)
	return raw, err
}

// FetchWithInfo is Fetch that also reports whether the result came from the
// cache or from a fetch another caller started.
func (f *Fetcher) FetchWithInfo(ctx context.Context, sourceID, subRange string) (table.Raw, bool, error) {
	key := ports.Key(sourceID, subRange)
	if raw, age, ok := f.store.GetWithAge(key); ok {
		f.logger.DebugContext(ctx, "Cache hit", log.FieldSourceID, sourceID, log.FieldSubRange, subRange, "age", age.String())
		return raw, true, nil
	}

	// The upstream call outlives any one caller's ctx; a cancelled caller
	// only stops waiting.
	leader := false
	ch := f.group.DoChan(key, func() (any, error) {
		leader = true
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		raw, err := f.next.Fetch(fetchCtx, sourceID, subRange)
		if err != nil {
			return nil, err
		}
		f.store.Set(key, raw)
		return raw, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if res.Err != nil {
		f.logger.WarnContext(ctx, "Fetch failed", log.FieldSourceID, sourceID, log.FieldSubRange, subRange, log.FieldError, res.Err)
		return nil, false, res.Err
	}
	f.logger.DebugContext(ctx, "Cache miss", log.FieldSourceID, sourceID, log.FieldSubRange, subRange, "shared", res.Shared, "leader", leader)
	// Callers that joined another's fetch did not cause an upstream call.
	return res.Val.(table.Raw), !leader, nil
}

// Invalidate drops the entry for one source and sub-range.
func (f *Fetcher) Invalidate(sourceID, subRange string) {
	f.store.Delete(ports.Key(sourceID, subRange))
	f.logger.Info("Cache invalidated", log.FieldSourceID, sourceID, log.FieldSubRange, subRange)
}

// InvalidateAll empties the cache.
func (f *Fetcher) InvalidateAll() {
	f.store.Clear()
	f.logger.Info("Cache cleared")
}
