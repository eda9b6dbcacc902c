package follower

import (
	"context"
	"log/slog"

	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/metastore"
)

// Fetcher wraps the metastore client with a bounded dedup cache. The
// upstream re-delivers events around reconnects; the cache suppresses ids
// the follower has recently seen.
type Fetcher struct {
	client    metastore.Client
	batchSize int
	cache     *idCache
	logger    *slog.Logger
}

// NewFetcher creates a fetcher over the given client. cacheSize bounds the
// dedup cache; eviction is oldest-first.
func NewFetcher(client metastore.Client, batchSize, cacheSize int, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		batchSize: batchSize,
		cache:     newIDCache(cacheSize),
		logger:    logger.With("component", "notification-fetcher"),
	}
}

// CurrentID returns the upstream's current maximum event id.
func (f *Fetcher) CurrentID(ctx context.Context) (int64, error) {
	return f.client.CurrentNotificationID(ctx)
}

// Fetch returns events with id strictly greater than after, in id order,
// with recently seen ids suppressed. Propagates metastore.ErrOutOfSync when
// the upstream truncated past the requested position.
func (f *Fetcher) Fetch(ctx context.Context, after int64) ([]hms.Event, error) {
	evs, err := f.client.FetchNotifications(ctx, after, f.batchSize)
	if err != nil {
		return nil, err
	}

	out := make([]hms.Event, 0, len(evs))
	for _, ev := range evs {
		if f.cache.contains(ev.ID) {
			f.logger.Debug("suppressing re-delivered notification", "event_id", ev.ID)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// UpdateCache remembers the event as observed so near-future re-deliveries
// are suppressed.
func (f *Fetcher) UpdateCache(ev hms.Event) {
	f.cache.add(ev.ID)
}

// Close releases the fetcher's cache.
func (f *Fetcher) Close() {
	f.cache.clear()
}

// idCache is a bounded FIFO set of event ids.
type idCache struct {
	max   int
	ids   map[int64]struct{}
	order []int64
}

func newIDCache(max int) *idCache {
	if max <= 0 {
		max = 1
	}
	return &idCache{
		max: max,
		ids: make(map[int64]struct{}, max),
	}
}

func (c *idCache) contains(id int64) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *idCache) add(id int64) {
	if _, ok := c.ids[id]; ok {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.ids, oldest)
	}
	c.ids[id] = struct{}{}
	c.order = append(c.order, id)
}

func (c *idCache) clear() {
	c.ids = make(map[int64]struct{}, c.max)
	c.order = nil
}
