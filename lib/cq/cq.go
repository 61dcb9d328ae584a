// Package cq implements the CQRegistry collaborator (spec.md §6): the
// continuous-query delivery mechanism that notifies interested listeners
// whenever a key they care about is put, removed or expires. It plays the
// role Ignite's CacheContinuousQueryManager plays for GridCacheMapEntry,
// generalized to a plain callback interface instead of a distributed
// query/filter pipeline.
package cq

import (
	"sync/atomic"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
	"github.com/puzpuzpuz/xsync/v3"
)

// Listener receives update and expiry notifications for the keys its
// Filter accepts.
type Listener interface {
	OnUpdate(key string, newVal, oldVal []byte, ver version.Version)
	OnExpired(key string, val []byte)
}

// Filter decides whether a listener cares about key. A nil Filter accepts
// every key.
type Filter func(key string) bool

type registration struct {
	id           uint64
	filter       Filter
	listener     Listener
	includeLocal bool // fire for non-primary (internal) updates too
}

// Registry is a concurrent-safe set of registered listeners. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	nextID atomic.Uint64
	regs   *xsync.MapOf[uint64, *registration]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regs: xsync.NewMapOf[uint64, *registration]()}
}

// Register adds a listener and returns an id plus an unregister func.
// includeLocal mirrors Ignite's "notify on backup/internal updates too"
// continuous query option; most callers only care about primary writes and
// pass false.
func (r *Registry) Register(filter Filter, l Listener, includeLocal bool) (id uint64, unregister func()) {
	id = r.nextID.Add(1)
	r.regs.Store(id, &registration{id: id, filter: filter, listener: l, includeLocal: includeLocal})
	return id, func() { r.regs.Delete(id) }
}

// UpdateListeners implements cacheentry.CQRegistry. It snapshots the
// registrations applicable to this update (dropping internal-update
// listeners when the update itself is not primary-or-local) and reports
// whether the snapshot is worth delivering at all, so InnerUpdate can skip
// OnEntryUpdated entirely when nobody is listening.
func (r *Registry) UpdateListeners(internal, primary bool) (cacheentry.ListenerSet, bool) {
	var snapshot []*registration
	r.regs.Range(func(_ uint64, reg *registration) bool {
		if internal && !primary && !reg.includeLocal {
			return true
		}
		snapshot = append(snapshot, reg)
		return true
	})
	return snapshot, len(snapshot) > 0
}

// OnEntryUpdated implements cacheentry.CQRegistry: it runs each
// registration's filter against key and delivers the event to every match.
func (r *Registry) OnEntryUpdated(set cacheentry.ListenerSet, key string, newVal, oldVal []byte, ver version.Version) {
	regs, ok := set.([]*registration)
	if !ok {
		return
	}
	for _, reg := range regs {
		if reg.filter != nil && !reg.filter(key) {
			continue
		}
		reg.listener.OnUpdate(key, newVal, oldVal, ver)
	}
}

// OnEntryExpired implements cacheentry.CQRegistry: every registered
// listener whose filter accepts key is notified, regardless of the
// internal/primary distinction UpdateListeners applies to ordinary writes,
// since expiry is a local event with no "primary" concept.
func (r *Registry) OnEntryExpired(key string, val []byte) {
	r.regs.Range(func(_ uint64, reg *registration) bool {
		if reg.filter == nil || reg.filter(key) {
			reg.listener.OnExpired(key, val)
		}
		return true
	})
}
