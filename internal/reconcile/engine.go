package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/secure-deps/depowners/internal/cache"
	"github.com/secure-deps/depowners/internal/registry"
	"github.com/secure-deps/depowners/internal/snapshot"
)

// SnapshotFetcher downloads the registry's bulk dump.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, etag string) (*snapshot.FetchResult, error)
}

// LiveClient answers per-package ownership queries against the registry
// API.
type LiveClient interface {
	OwnersOf(ctx context.Context, name string) ([]registry.Owner, error)
}

// Engine orchestrates the cache, the snapshot index and the live client
// to resolve owners for a set of requested packages.
type Engine struct {
	Cache   *cache.Store
	Fetcher SnapshotFetcher
	Live    LiveClient

	// Workers bounds concurrent live lookups. The registry's request
	// spacing is enforced by the live client itself; this only caps
	// in-flight goroutines.
	Workers int
}

// Options controls one reconciliation run.
type Options struct {
	// MaxAge is the freshness threshold for the cached snapshot.
	MaxAge time.Duration
	// ForceLive bypasses the cache entirely and resolves everything
	// through live lookups.
	ForceLive bool
}

// Reconcile resolves the owner sets of the given packages. Snapshot
// data is used for every package the fresh cache covers; the rest go
// through live lookups. A package whose lookups all fail is recorded as
// unresolved rather than failing the run, so the result for the other
// packages stays complete. The returned error is non-nil only for
// whole-run problems such as cancellation.
func (e *Engine) Reconcile(ctx context.Context, names []string, opts Options) (*Mapping, error) {
	log := zap.L().Sugar()
	m := NewMapping()
	if len(names) == 0 {
		return m, nil
	}

	var ix *snapshot.Index
	if !opts.ForceLive {
		ix = e.loadIndex(opts.MaxAge)
	}

	var liveQueue []string
	hits := 0
	for _, name := range names {
		if ix != nil {
			if owners, found := ix.OwnersOf(name); found {
				m.Add(name, owners)
				hits++
				continue
			}
		}
		liveQueue = append(liveQueue, name)
	}
	if ix != nil {
		log.Infof("resolved %d of %d packages from the cached snapshot", hits, len(names))
	}

	if len(liveQueue) > 0 {
		log.Infof("querying the registry for %d packages (roughly %s per package due to rate limits)",
			len(liveQueue), registry.MinRequestInterval)
		e.resolveLive(ctx, m, liveQueue)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) resolveLive(ctx context.Context, m *Mapping, names []string) {
	log := zap.L().Sugar()

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var done atomic.Int64
	total := len(names)

	for _, name := range names {
		name := name
		g.Go(func() error {
			owners, err := e.Live.OwnersOf(ctx, name)
			n := done.Add(1)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warnf("could not resolve owners of %q (%d/%d): %v", name, n, total, err)
				m.MarkUnresolved(name, err)
				return nil
			}
			log.Infof("fetched owners of %q (%d/%d)", name, n, total)
			m.Add(name, owners)
			return nil
		})
	}
	_ = g.Wait()
}

// loadIndex returns the parsed snapshot index when the cache is usable,
// nil otherwise. Every degraded path downgrades to live lookups with an
// advisory; a damaged cache is never fatal.
func (e *Engine) loadIndex(maxAge time.Duration) *snapshot.Index {
	log := zap.L().Sugar()

	age, ok := e.Cache.Age()
	if !ok {
		log.Warnf("the snapshot cache was not found or is invalid; run `depowners update` to create it")
		return nil
	}
	if age > maxAge {
		log.Warnf("ignoring cached snapshot older than %s; run `depowners update` to refresh it", maxAge)
		return nil
	}

	data, ok := e.Cache.Read()
	if !ok {
		log.Warnf("the snapshot cache could not be read; run `depowners update` to recreate it")
		return nil
	}
	ix, err := snapshot.BuildIndex(data)
	if err != nil {
		log.Warnf("cached snapshot is unreadable, falling back to live lookups: %v", err)
		return nil
	}
	log.Debugf("snapshot covers %d packages (dump created %s)", ix.Packages(), ix.CreatedAt)
	return ix
}

// RefreshState describes the outcome of a cache refresh.
type RefreshState int

const (
	// RefreshNotModified means the registry confirmed via ETag that the
	// cached snapshot is still current; nothing was downloaded.
	RefreshNotModified RefreshState = iota
	// RefreshUpdated means a newer dump was downloaded and installed.
	RefreshUpdated
	// RefreshUnchanged means a full download was forced but the registry
	// served the same dump that was already cached.
	RefreshUnchanged
)

// RefreshCache downloads the bulk dump and installs it in the cache.
// This is the force-live path: it always contacts the registry. The new
// dump is fully parsed before anything is written, so a malformed dump
// is a hard failure that leaves the previously cached good snapshot in
// place, and a failed download leaves the cache metadata untouched.
func (e *Engine) RefreshCache(ctx context.Context, maxAge time.Duration) (RefreshState, *snapshot.Index, error) {
	rememberedETag := e.Cache.ETag()

	// Only offer If-None-Match revalidation while the cached copy is
	// within the freshness window; past it we want a full download even
	// if the registry still serves the same entity.
	requestETag := ""
	if e.Cache.Fresh(maxAge) {
		requestETag = rememberedETag
	}

	res, err := e.Fetcher.Fetch(ctx, requestETag)
	if err != nil {
		return 0, nil, err
	}
	if res.NotModified {
		return RefreshNotModified, nil, nil
	}

	ix, err := snapshot.BuildIndex(res.Data)
	if err != nil {
		return 0, nil, fmt.Errorf("downloaded snapshot is malformed: %w", err)
	}

	if err := e.Cache.Replace(res.Data, time.Now(), res.ETag); err != nil {
		return 0, nil, fmt.Errorf("installing snapshot in cache: %w", err)
	}

	if res.ETag != "" && res.ETag == rememberedETag {
		return RefreshUnchanged, ix, nil
	}
	return RefreshUpdated, ix, nil
}
