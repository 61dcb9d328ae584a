// Package rowstore implements the off-heap row store collaborator
// cacheentry.RowStore: a sharded, versioned key/value map with TTL-driven
// garbage collection. It generalizes lib/db/engines/maple, which shards a
// flat byte value the same way, to the row shape (value, version, TTL,
// expire-time) the cache entry core needs for its atomic Invoke path.
package rowstore

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/db/util"
	"github.com/Kaychang/ignitecache/lib/rowstore/internal"
	"github.com/Kaychang/ignitecache/lib/version"
)

const defaultGCInterval = 100 * time.Millisecond

// Store is a sharded, off-heap Row store satisfying cacheentry.RowStore.
type Store struct {
	numShards int
	seed      uint64
	shards    []*internal.Shard

	gcInterval  time.Duration
	gcIsRunning atomic.Bool
}

// Options configures a Store.
type Options struct {
	NumShards  int
	GCInterval time.Duration
}

// DefaultOptions mirrors maple.DefaultOptions: one shard per CPU, GC every
// 100ms.
func DefaultOptions() *Options {
	return &Options{NumShards: runtime.NumCPU(), GCInterval: defaultGCInterval}
}

// New creates a Store and starts its background garbage collector.
func New(opts *Options) *Store {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = 1
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = defaultGCInterval
	}

	seed := util.GenerateSeed()
	hasher := func(key util.UintKey, mapSeed uint64) uint64 { return uint64(key) ^ mapSeed }

	shards := make([]*internal.Shard, opts.NumShards)
	for i := range shards {
		shards[i] = internal.NewShard(hasher)
	}

	s := &Store{numShards: opts.NumShards, seed: seed, shards: shards, gcInterval: opts.GCInterval}
	s.startGC()
	return s
}

func (s *Store) hash(key string) util.UintKey { return util.HashString(key, s.seed) }

func toInternalVer(v version.Version) internal.RowVersion {
	return internal.RowVersion{
		TopologyVersion: v.TopologyVersion,
		GlobalTime:      v.GlobalTime,
		Order:           v.Order,
		NodeOrder:       v.NodeOrder,
		DataCenterId:    v.DataCenterId,
	}
}

func fromInternalVer(v internal.RowVersion) version.Version {
	return version.Version{
		TopologyVersion: v.TopologyVersion,
		GlobalTime:      v.GlobalTime,
		Order:           v.Order,
		NodeOrder:       v.NodeOrder,
		DataCenterId:    v.DataCenterId,
	}
}

func toInternalEntry(key string, row cacheentry.Row) internal.Entry {
	return internal.Entry{
		Key:      key,
		Value:    row.Value,
		Ver:      toInternalVer(row.Ver),
		ExpireAt: row.ExpireTime,
	}
}

func fromInternalEntry(e internal.Entry) cacheentry.Row {
	return cacheentry.Row{Value: e.Value, Ver: fromInternalVer(e.Ver), TTL: 0, ExpireTime: e.ExpireAt}
}

// Read implements cacheentry.RowStore.
func (s *Store) Read(key string) (cacheentry.Row, bool, error) {
	intKey := s.hash(key)
	shard := internal.GetShard(intKey, s.shards)

	var (
		row   cacheentry.Row
		found bool
	)
	shard.Data.Compute(intKey, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return e, true // delete=true: a missing key must not be created by reading it
		}
		if e.TTLInfo(uint64(time.Now().UnixNano())) {
			return e, false
		}
		row = fromInternalEntry(e)
		found = true
		return e, false
	})
	return row, found, nil
}

// Update implements cacheentry.RowStore. partition is accepted for interface
// symmetry with Invoke but does not affect shard placement — storage shards
// by key hash, not by cache partition.
func (s *Store) Update(key string, row cacheentry.Row, partition uint32) error {
	intKey := s.hash(key)
	shard := internal.GetShard(intKey, s.shards)
	entry := toInternalEntry(key, row)

	var event *internal.Event
	shard.Data.Compute(intKey, func(_ internal.Entry, loaded bool) (internal.Entry, bool) {
		if entry.ExpireAt != 0 {
			event = &internal.Event{Type: internal.EventTWrite, Key: intKey}
		}
		return entry, false
	})
	if event != nil {
		shard.Events.Push(event)
	}
	return nil
}

// Remove implements cacheentry.RowStore.
func (s *Store) Remove(key string, partition uint32) error {
	intKey := s.hash(key)
	shard := internal.GetShard(intKey, s.shards)

	var hadEntry bool
	shard.Data.Compute(intKey, func(_ internal.Entry, loaded bool) (internal.Entry, bool) {
		hadEntry = loaded
		return internal.Entry{}, true
	})
	if hadEntry {
		shard.Events.Push(&internal.Event{Type: internal.EventTDelete, Key: intKey})
	}
	return nil
}

// Invoke implements cacheentry.RowStore's atomic apply contract, the row
// store's equivalent of mapleImpl.compute: fn sees a consistent snapshot of
// the current row (already demoted to "not loaded" if logically expired)
// and its RowOp decides what Invoke applies to the shard, atomically with
// respect to every other Read/Update/Remove/Invoke on the same key.
func (s *Store) Invoke(key string, partition uint32, fn func(row cacheentry.Row, loaded bool) (cacheentry.Row, cacheentry.RowOp)) (cacheentry.Row, cacheentry.RowOp, error) {
	intKey := s.hash(key)
	shard := internal.GetShard(intKey, s.shards)

	var (
		resultRow cacheentry.Row
		resultOp  cacheentry.RowOp
		event     *internal.Event
	)
	shard.Data.Compute(intKey, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && e.TTLInfo(uint64(time.Now().UnixNano())) {
			loaded = false
		}

		current := fromInternalEntry(e)
		newRow, op := fn(current, loaded)
		resultRow, resultOp = newRow, op

		switch op {
		case cacheentry.RowOpRemove:
			if loaded {
				event = &internal.Event{Type: internal.EventTDelete, Key: intKey}
			}
			return e, true
		case cacheentry.RowOpPut:
			if newRow.ExpireTime != 0 {
				event = &internal.Event{Type: internal.EventTWrite, Key: intKey}
			}
			return toInternalEntry(key, newRow), false
		default: // RowOpNoop
			return e, false
		}
	})
	if event != nil {
		shard.Events.Push(event)
	}
	return resultRow, resultOp, nil
}

// startGC launches one collector goroutine per shard, exactly like
// mapleImpl.startGC/garbageCollector.
func (s *Store) startGC() {
	if !s.gcIsRunning.CompareAndSwap(false, true) {
		return
	}
	for i := range s.shards {
		go s.collectShard(s.shards[i])
	}
}

// Close stops every shard's collector goroutine. Once stopped a Store
// cannot be restarted, matching mapleImpl.stopGC/Close.
func (s *Store) Close() error {
	if !s.gcIsRunning.CompareAndSwap(true, false) {
		return nil
	}
	for _, shard := range s.shards {
		shard.Events.Close()
	}
	return nil
}

func (s *Store) collectShard(shard *internal.Shard) {
	gcTimer := time.NewTimer(s.gcInterval)
	defer gcTimer.Stop()

	for {
		gcTimer.Reset(s.gcInterval)

		endLoop := false
		for !endLoop {
			select {
			case event, ok := <-shard.Events.Recv():
				if !ok {
					return
				}
				switch event.Type {
				case internal.EventTWrite:
					if entry, ok := shard.Data.Load(event.Key); ok {
						if entry.ExpireAt != 0 {
							shard.ExpireHeap.AddItem(uint64(event.Key), entry.ExpireAt)
						}
					}
				case internal.EventTDelete:
					shard.ExpireHeap.RemoveByKey(uint64(event.Key))
				}
			case <-gcTimer.C:
				endLoop = true
			}
		}

		now := uint64(time.Now().UnixNano())
		for {
			item, exists := shard.ExpireHeap.Peek()
			if !exists || item.Priority > now {
				break
			}
			shard.Data.Compute(util.UintKey(item.Key), func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				if !loaded || !e.TTLInfo(now) {
					return e, false
				}
				e.Value = nil
				return e, false
			})
			shard.ExpireHeap.RemoveByKey(item.Key)
		}
	}
}

// BatchSwapWriter accumulates SwapEntry snapshots produced by
// Entry.EvictInBatchInternal and removes their keys from the store in one
// Flush call, grounded on mapleImpl.Save's collect-all-snapshots-then-write
// loop. Flush removes the keys one by one through Remove, in queue order;
// keys are not grouped by shard, so each removal takes its shard's lock
// separately.
type BatchSwapWriter struct {
	store   *Store
	pending []cacheentry.SwapEntry
}

// NewBatchSwapWriter returns a writer bound to store.
func (s *Store) NewBatchSwapWriter() *BatchSwapWriter {
	return &BatchSwapWriter{store: s}
}

// Add queues a snapshot for the next Flush.
func (w *BatchSwapWriter) Add(snap cacheentry.SwapEntry) {
	w.pending = append(w.pending, snap)
}

// Flush removes every queued key from the row store and returns the
// snapshots that were flushed, for the caller to hand to a WAL/external
// store before discarding them. The pending queue is cleared either way.
func (w *BatchSwapWriter) Flush() []cacheentry.SwapEntry {
	flushed := w.pending
	w.pending = nil
	for _, snap := range flushed {
		_ = w.store.Remove(snap.Key, 0)
	}
	return flushed
}

// Len reports how many snapshots are currently queued.
func (w *BatchSwapWriter) Len() int {
	return len(w.pending)
}
