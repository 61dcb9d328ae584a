// Package cache wires every cacheentry collaborator into a single
// in-process cache: one *cacheentry.Entry per key, backed by a shared
// lib/rowstore.Store, exercised through the same lazily-created-entry
// pattern Ignite's GridCacheAdapter uses around GridCacheMapEntry — a
// missing or obsolete entry is created fresh and the operation retried,
// rather than failing the caller.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/future"
	"github.com/Kaychang/ignitecache/lib/partition"
	"github.com/Kaychang/ignitecache/lib/rowstore"
	"github.com/Kaychang/ignitecache/lib/version"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Options configures a Cache. Every collaborator besides the row store,
// version generator and partition counter is optional, matching
// cacheentry.Config's own nil-checked collaborators.
type Options struct {
	NumShards  int
	GCInterval time.Duration

	LocalNodeOrder uint32
	DataCenterId   uint8
	NodeID         string
	IgnoreTime     bool

	DeferredDeleteEnabled bool

	ExpiryPolicy  cacheentry.ExpiryPolicy
	Interceptor   cacheentry.Interceptor
	CQ            cacheentry.CQRegistry
	WAL           cacheentry.WAL
	ExternalStore cacheentry.ExternalStore
	Events        cacheentry.EventRecorder
	DR            cacheentry.DRReplicator
	Resolver      cacheentry.ConflictResolver
}

// maxObsoleteRetries bounds the retry-on-obsolete-entry loop every
// operation runs. An entry only ever becomes obsolete once and a fresh one
// replaces it immediately, so more than a couple of retries means
// something else is wrong and the caller should see the error.
const maxObsoleteRetries = 4

// Cache is a single logical cache: every key maps to exactly one live
// *cacheentry.Entry at a time.
type Cache struct {
	rowStore    *rowstore.Store
	versionGen  *version.Generator
	part        *partition.Counter
	cfgTemplate cacheentry.Config
	entries     *xsync.MapOf[string, *cacheentry.Entry]
}

// New creates a Cache and starts its row store's background collector.
func New(opts *Options) *Cache {
	if opts == nil {
		opts = &Options{}
	}
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}

	rs := rowstore.New(&rowstore.Options{NumShards: opts.NumShards, GCInterval: opts.GCInterval})
	gen := version.NewGenerator(opts.LocalNodeOrder, opts.DataCenterId)
	part := partition.NewCounter()

	cfg := cacheentry.Config{
		RowStore:              rs,
		VersionGen:            gen,
		Part:                  part,
		ExpiryPolicy:          opts.ExpiryPolicy,
		Interceptor:           opts.Interceptor,
		CQ:                    opts.CQ,
		WAL:                   opts.WAL,
		ExternalStore:         opts.ExternalStore,
		Events:                opts.Events,
		DR:                    opts.DR,
		Resolver:              opts.Resolver,
		Comparator:            version.NewComparator(opts.IgnoreTime),
		LocalNodeOrder:        opts.LocalNodeOrder,
		NodeID:                opts.NodeID,
		DeferredDeleteEnabled: opts.DeferredDeleteEnabled,
	}

	return &Cache{
		rowStore:    rs,
		versionGen:  gen,
		part:        part,
		cfgTemplate: cfg,
		entries:     xsync.NewMapOf[string, *cacheentry.Entry](),
	}
}

// Close stops the underlying row store's background collector.
func (c *Cache) Close() error {
	return c.rowStore.Close()
}

func (c *Cache) newEntry(key string) *cacheentry.Entry {
	cfg := c.cfgTemplate
	var self *cacheentry.Entry
	cfg.OnObsolete = func(obsoleteKey string) {
		c.entries.Compute(obsoleteKey, func(cur *cacheentry.Entry, loaded bool) (*cacheentry.Entry, bool) {
			if loaded && cur == self {
				var zero *cacheentry.Entry
				return zero, true // delete: drop the slot, let the next access recreate it
			}
			return cur, !loaded // keep another entry's slot; create nothing for an absent key
		})
	}
	self = cacheentry.NewEntry(key, 0, version.Zero, &cfg)
	return self
}

// entryFor returns the live entry for key, lazily creating one on first
// access — the same role GridCacheMapEntry.entryEx plays for
// GridCacheAdapter, minus partition-aware sharding (every key lives on
// this single logical partition 0).
func (c *Cache) entryFor(key string) *cacheentry.Entry {
	entry, _ := c.entries.LoadOrStore(key, c.newEntry(key))
	return entry
}

// replaceObsolete swaps out an entry that has gone obsolete for a fresh
// one, but only if nobody else has already done so.
func (c *Cache) replaceObsolete(key string, stale *cacheentry.Entry) *cacheentry.Entry {
	var fresh *cacheentry.Entry
	c.entries.Compute(key, func(cur *cacheentry.Entry, loaded bool) (*cacheentry.Entry, bool) {
		if loaded && cur != stale {
			fresh = cur
			return cur, false
		}
		fresh = c.newEntry(key)
		return fresh, false
	})
	return fresh
}

// withRetry runs op against the live entry for key, replacing it and
// retrying whenever op reports the entry went obsolete mid-call.
func withRetry[T any](c *Cache, key string, op func(*cacheentry.Entry) (T, error)) (T, error) {
	entry := c.entryFor(key)
	var zero T
	for i := 0; i < maxObsoleteRetries; i++ {
		result, err := op(entry)
		if err == nil || !errors.Is(err, cacheentry.ErrEntryRemoved) {
			return result, err
		}
		entry = c.replaceObsolete(key, entry)
	}
	return zero, cacheentry.ErrEntryRemoved
}

// Get reads the current value for key.
func (c *Cache) Get(ctx context.Context, key string, opts cacheentry.GetOptions) (cacheentry.GetResult, error) {
	return withRetry(c, key, func(e *cacheentry.Entry) (cacheentry.GetResult, error) {
		return e.InnerGet(ctx, opts)
	})
}

// Put writes val for key, minting a fresh version unless opts already
// carries one.
func (c *Cache) Put(ctx context.Context, key string, val []byte, opts cacheentry.SetOptions) (cacheentry.SetResult, error) {
	opts.NewVal = val
	return withRetry(c, key, func(e *cacheentry.Entry) (cacheentry.SetResult, error) {
		return e.InnerSet(ctx, opts)
	})
}

// Remove deletes key.
func (c *Cache) Remove(ctx context.Context, key string, opts cacheentry.RemoveOptions) (cacheentry.SetResult, error) {
	return withRetry(c, key, func(e *cacheentry.Entry) (cacheentry.SetResult, error) {
		return e.InnerRemove(ctx, opts)
	})
}

// Invoke atomically applies an entry processor to key, spec.md §4.E/§4.F's
// atomic update path.
func (c *Cache) Invoke(ctx context.Context, key string, req cacheentry.UpdateRequest) (cacheentry.UpdateResult, error) {
	req.Op = cacheentry.UpdateOpTransform
	return withRetry(c, key, func(e *cacheentry.Entry) (cacheentry.UpdateResult, error) {
		return e.InnerUpdate(ctx, req)
	})
}

// PutAsync mirrors Put but returns immediately with a future completed on a
// background goroutine, the same IgniteCache.putAsync wraps around its
// synchronous put. The retry-on-obsolete-entry loop runs entirely inside
// the goroutine so the future always resolves exactly once, with the final
// outcome rather than an intermediate retry's.
func (c *Cache) PutAsync(ctx context.Context, key string, val []byte, opts cacheentry.SetOptions) *future.Future[cacheentry.SetResult] {
	f := future.New[cacheentry.SetResult]()
	go func() {
		res, err := c.Put(ctx, key, val, opts)
		if err != nil {
			f.OnDoneErr(err)
			return
		}
		f.OnDone(res)
	}()
	return f
}

// RemoveAsync mirrors Remove the way PutAsync mirrors Put.
func (c *Cache) RemoveAsync(ctx context.Context, key string, opts cacheentry.RemoveOptions) *future.Future[cacheentry.SetResult] {
	f := future.New[cacheentry.SetResult]()
	go func() {
		res, err := c.Remove(ctx, key, opts)
		if err != nil {
			f.OnDoneErr(err)
			return
		}
		f.OnDone(res)
	}()
	return f
}

// InvokeAsync mirrors Invoke the way PutAsync mirrors Put.
func (c *Cache) InvokeAsync(ctx context.Context, key string, req cacheentry.UpdateRequest) *future.Future[cacheentry.UpdateResult] {
	f := future.New[cacheentry.UpdateResult]()
	go func() {
		res, err := c.Invoke(ctx, key, req)
		if err != nil {
			f.OnDoneErr(err)
			return
		}
		f.OnDone(res)
	}()
	return f
}
