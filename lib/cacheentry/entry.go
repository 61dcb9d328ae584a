// Package cacheentry implements the per-key cache entry state machine: the
// authoritative in-memory metadata for one key (value, version, TTL,
// obsolete/deleted markers, lock candidates) and the pathways that mutate it
// — transactional set/remove, atomic update, expiration, eviction and
// initial load — against an off-heap row store. It is a Go translation of
// Apache Ignite's GridCacheMapEntry, generalized to the collaborator
// interfaces declared in interfaces.go.
package cacheentry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Kaychang/ignitecache/lib/extras"
	"github.com/Kaychang/ignitecache/lib/mvcc"
	"github.com/Kaychang/ignitecache/lib/version"
)

type flag uint8

const (
	flagDeleted   flag = 1 << 0
	flagUnswapped flag = 1 << 1
)

// Config bundles every collaborator an Entry needs. RowStore and VersionGen
// are required; everything else, Part included, is optional and nil-checked
// at the call site (matching spec.md §6's collaborators, most of which are absent in a
// minimal deployment).
type Config struct {
	RowStore   RowStore
	VersionGen VersionGenerator
	Part       Partition

	ExpiryPolicy  ExpiryPolicy
	Interceptor   Interceptor
	CQ            CQRegistry
	WAL           WAL
	ExternalStore ExternalStore
	Events        EventRecorder
	DR            DRReplicator
	Resolver      ConflictResolver

	Comparator            version.Comparator
	LocalNodeOrder        uint32
	NodeID                string
	DeferredDeleteEnabled bool

	// OnObsolete is invoked exactly once, outside the entry lock, the
	// moment an entry transitions to Obsolete. Supplements spec.md §4.E
	// with GridCacheEntryEx.onMarkedObsolete, used by eviction policies to
	// detach their own bookkeeping.
	OnObsolete func(key string)
}

// Entry is one live (or recently obsoleted) key's cache metadata.
type Entry struct {
	key       string
	partition uint32
	cfg       *Config

	rlock *reentrantLock

	val      []byte
	ver      version.Version
	startVer version.Version
	flags    flag
	ext      *extras.Extras

	obsoleteNotified atomic.Bool
}

// NewEntry constructs a fresh entry. startVer is both the entry's initial
// version and its "start version" used by isNew.
func NewEntry(key string, partition uint32, startVer version.Version, cfg *Config) *Entry {
	return &Entry{
		key:       key,
		partition: partition,
		cfg:       cfg,
		rlock:     newReentrantLock(),
		ver:       startVer,
		startVer:  startVer,
	}
}

func (e *Entry) Key() string { return e.key }

// LockEntry/UnlockEntry expose the reentrant monitor to callers (the
// transaction layer) that need to hold it across several inner* calls.
// token must be non-nil and reused for every paired call.
func (e *Entry) LockEntry(token any) {
	if token == nil {
		panic("cacheentry: LockEntry requires a non-nil token")
	}
	e.rlock.Lock(token)
}

func (e *Entry) UnlockEntry(token any) {
	if token == nil {
		panic("cacheentry: UnlockEntry requires a non-nil token")
	}
	e.rlock.Unlock(token)
}

// withLock runs fn with the entry lock held for token (or a private token if
// nil), reentering correctly if the caller already holds it with the same
// token.
func (e *Entry) withLock(token any, fn func() error) error {
	t := token
	if t == nil {
		t = freshToken()
	}
	e.rlock.Lock(t)
	defer e.rlock.Unlock(t)
	return fn()
}

func (e *Entry) hasFlag(f flag) bool    { return e.flags&f != 0 }
func (e *Entry) setFlag(f flag)         { e.flags |= f }
func (e *Entry) clearFlag(f flag)       { e.flags &^= f }

// isNewLocked reports whether the entry has never been written: its version
// still equals its start version and that version was minted by this node.
func (e *Entry) isNewLocked() bool {
	return e.ver.Equal(e.startVer) && e.ver.NodeOrder == e.cfg.LocalNodeOrder
}

func (e *Entry) isObsoleteLocked() bool {
	_, ok := e.ext.ObsoleteVersion()
	return ok
}

// IsObsolete reports whether the entry has reached its terminal state.
func (e *Entry) IsObsolete() bool {
	var obs bool
	_ = e.withLock(nil, func() error {
		obs = e.isObsoleteLocked()
		return nil
	})
	return obs
}

func (e *Entry) viewLocked() EntryView {
	ttl, expireTime, _ := e.ext.TTL()
	return EntryView{
		Key:        e.key,
		Value:      copyBytes(e.val),
		Ver:        e.ver,
		TTL:        ttl,
		ExpireTime: expireTime,
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (e *Entry) deferredDeleteEnabledLocked() bool {
	if override, ok := e.ext.DeferredDelete(); ok {
		return override
	}
	return e.cfg.DeferredDeleteEnabled
}

func (e *Entry) markObsoleteLocked(ver version.Version) {
	e.ext = e.ext.WithObsoleteVersion(ver)
}

// transitionToDeletedOrObsoleteLocked implements the remove/expire decision
// from spec.md §4.E: immediate obsolete iff no foreign lock candidates
// remain and deferred-deletion is disabled for this entry; otherwise a
// tombstone (IS_DELETED) that can still absorb a resurrecting put.
func (e *Entry) transitionToDeletedOrObsoleteLocked(ver version.Version, exclude ...mvcc.Candidate) (wentObsolete bool) {
	noForeign := true
	if e.ext.HasCandidates() {
		_, candidates := e.ext.Candidates()
		noForeign = candidates.IsEmpty(exclude...)
	}
	if noForeign && !e.deferredDeleteEnabledLocked() {
		e.markObsoleteLocked(ver)
		return true
	}
	e.setFlag(flagDeleted)
	return false
}

func (e *Entry) fireObsoleteIfNeeded(went bool) {
	if went && e.obsoleteNotified.CompareAndSwap(false, true) && e.cfg.OnObsolete != nil {
		e.cfg.OnObsolete(e.key)
	}
}

func (e *Entry) recordEvent(enabled bool, kind EventKind, ver version.Version, val []byte) {
	if !enabled || e.cfg.Events == nil || !e.cfg.Events.IsRecordable(kind) {
		return
	}
	e.cfg.Events.AddEvent(e.partition, e.key, e.cfg.NodeID, ver, kind, val)
}

// computeTTL resolves the TTL for a write per spec.md §4.F step 8's
// priority: explicit value from the caller, else the expiry policy for the
// given phase, else "not changed".
func (e *Entry) computeTTL(explicit TTL, hasExplicit bool, override ExpiryPolicy, forCreate bool) TTL {
	if hasExplicit {
		return explicit
	}
	policy := override
	if policy == nil {
		policy = e.cfg.ExpiryPolicy
	}
	if policy == nil {
		return TTLNotChanged
	}
	if forCreate {
		return policy.ForCreate()
	}
	return policy.ForUpdate()
}

// applyTTLResult applies a resolved TTL to the entry's extras, reporting
// whether a zero explicit TTL demotes the write to a delete.
func (e *Entry) applyTTLResult(res TTL) (demoteToDelete bool) {
	switch {
	case res == TTLNotChanged:
		return false
	case res == TTLEternal:
		e.ext = e.ext.WithTTL(0, 0)
		return false
	case res < 0:
		// Unrecognized negative sentinel: behave as NotChanged defensively.
		return false
	case res == 0:
		return true
	default:
		ttl := uint64(res)
		e.ext = e.ext.WithTTL(ttl, uint64(time.Now().UnixNano())+ttl)
		return false
	}
}

func (e *Entry) isExpiredLocked(now time.Time) bool {
	_, expireTime, ok := e.ext.TTL()
	return ok && expireTime != 0 && expireTime <= uint64(now.UnixNano())
}

// expireLocked implements spec.md §4.E Expiration: clear val and transition
// to deleted or obsolete. Returns the value that was cleared, for the
// EXPIRED event fired by the caller after the lock is released.
func (e *Entry) expireLocked(obsoleteVer version.Version) (oldVal []byte, wentObsolete bool) {
	oldVal = e.val
	e.val = nil
	e.ext = e.ext.WithTTL(0, 0)
	wentObsolete = e.transitionToDeletedOrObsoleteLocked(obsoleteVer)
	return oldVal, wentObsolete
}

// OnTtlExpired is the external TTL-scanner's entry point (spec.md §4.E
// Expiration: "an external TTL-scanner calling onTtlExpired(obsoleteVer)").
func (e *Entry) OnTtlExpired(obsoleteVer version.Version) error {
	var (
		oldVal       []byte
		wentObsolete bool
		fired        bool
	)
	err := e.withLock(nil, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}
		if !e.isExpiredLocked(time.Now()) {
			return nil
		}
		oldVal, wentObsolete = e.expireLocked(obsoleteVer)
		fired = true
		return nil
	})
	if err != nil {
		return err
	}
	if fired {
		if e.cfg.Events != nil && e.cfg.Events.IsRecordable(EventExpired) {
			e.cfg.Events.AddEvent(e.partition, e.key, e.cfg.NodeID, obsoleteVer, EventExpired, oldVal)
		}
		if e.cfg.CQ != nil {
			e.cfg.CQ.OnEntryExpired(e.key, oldVal)
		}
		e.fireObsoleteIfNeeded(wentObsolete)
	}
	return nil
}

// RawPut installs val/ver directly, bypassing the normal write pipeline: no
// event, no WAL, no CQ. Supplements spec.md §4.E; used by rebalancing paths
// that install a value without going through innerSet. Callers must already
// hold the entry lock (e.g. via LockEntry) or accept the race window between
// check and install that any unguarded metadata write implies.
func (e *Entry) RawPut(val []byte, ver version.Version) {
	e.val = val
	e.ver = ver
	if val == nil {
		e.setFlag(flagDeleted)
	} else {
		e.clearFlag(flagDeleted)
	}
}

// Invalidate bumps the version with val cleared, without transitioning
// through obsolete or deleted. Used by near-cache invalidation messages
// (spec.md §4.E / SUPPLEMENTED FEATURES #6). newVer must be >= the current
// version under the configured comparator; ties are accepted since
// invalidation is idempotent.
func (e *Entry) Invalidate(newVer version.Version) error {
	return e.withLock(nil, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}
		if !e.cfg.Comparator.GreaterEqual(newVer, e.ver) {
			return NewError(CodeVersionCheckFailed, "invalidate version is behind the current version")
		}
		e.val = nil
		e.ver = newVer
		return nil
	})
}

// SwapEntry is a snapshot of an entry's row prepared for a batch swap
// writer, produced by EvictInBatchInternal (spec.md §4.E Eviction,
// SUPPLEMENTED FEATURES #7).
type SwapEntry struct {
	Key        string
	ValueBytes []byte
	Ver        version.Version
	TTL        uint64
	ExpireTime uint64
}

// noForeignReadersLocked is the "no readers" precondition for eviction: no
// active MVCC lock owner other than the evicting caller. Ignite's original
// also checks distributed near-cache readers, out of scope here.
func (e *Entry) noForeignReadersLocked(exclude ...mvcc.Candidate) bool {
	if !e.ext.HasCandidates() {
		return true
	}
	_, candidates := e.ext.Candidates()
	return candidates.IsEmpty(exclude...)
}

// EvictInternal attempts to mark the entry obsolete. Returns whether it did.
func (e *Entry) EvictInternal(obsoleteVer version.Version, filter func(EntryView) bool) (bool, error) {
	var (
		evicted      bool
		wentObsolete bool
	)
	err := e.withLock(nil, func() error {
		if e.isObsoleteLocked() {
			return nil
		}
		if e.hasFlag(flagDeleted) {
			return nil
		}
		if !e.noForeignReadersLocked() {
			return nil
		}
		if filter != nil && !filter(e.viewLocked()) {
			return nil
		}
		e.markObsoleteLocked(obsoleteVer)
		e.val = nil
		evicted = true
		wentObsolete = true
		return nil
	})
	if err != nil {
		return false, err
	}
	e.fireObsoleteIfNeeded(wentObsolete)
	return evicted, nil
}

// EvictInBatchInternal is EvictInternal but returns a SwapEntry snapshot
// instead of discarding the value, for a batch swap writer to persist before
// the in-memory value is cleared.
func (e *Entry) EvictInBatchInternal(obsoleteVer version.Version, filter func(EntryView) bool) (SwapEntry, bool, error) {
	var (
		snap         SwapEntry
		evicted      bool
		wentObsolete bool
	)
	err := e.withLock(nil, func() error {
		if e.isObsoleteLocked() || e.hasFlag(flagDeleted) {
			return nil
		}
		if !e.noForeignReadersLocked() {
			return nil
		}
		if filter != nil && !filter(e.viewLocked()) {
			return nil
		}
		ttl, expireTime, _ := e.ext.TTL()
		snap = SwapEntry{
			Key:        e.key,
			ValueBytes: copyBytes(e.val),
			Ver:        e.ver,
			TTL:        ttl,
			ExpireTime: expireTime,
		}
		e.markObsoleteLocked(obsoleteVer)
		e.val = nil
		evicted = true
		wentObsolete = true
		return nil
	})
	if err != nil {
		return SwapEntry{}, false, err
	}
	e.fireObsoleteIfNeeded(wentObsolete)
	return snap, evicted, nil
}

// InitialValue installs a value from preload or persistence (spec.md §4.E
// Initial Load). It installs iff the entry is new, or the incoming version
// compares strictly greater under the configured comparator. nearCache
// suppresses the CREATE WAL record.
func (e *Entry) InitialValue(val []byte, ver version.Version, ttl, expireTime uint64, nearCache bool) (bool, error) {
	var installed bool
	err := e.withLock(nil, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}
		if !(e.isNewLocked() || e.cfg.Comparator.Greater(ver, e.ver)) {
			return nil
		}
		e.val = val
		e.ver = ver
		if val == nil {
			e.setFlag(flagDeleted)
		} else {
			e.clearFlag(flagDeleted)
		}
		if ttl != 0 || expireTime != 0 {
			e.ext = e.ext.WithTTL(ttl, expireTime)
		}
		installed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !installed {
		return false, nil
	}
	if !nearCache && e.cfg.WAL != nil {
		if werr := e.cfg.WAL.Log(DataRecord{Type: RecordCreate, Key: e.key, Value: val, Ver: ver}); werr != nil {
			return true, NewError(CodeStorageError, werr.Error())
		}
	}
	if val != nil && e.cfg.CQ != nil {
		if set, ok := e.cfg.CQ.UpdateListeners(true, true); ok {
			e.cfg.CQ.OnEntryUpdated(set, e.key, val, nil, ver)
		}
	}
	return true, nil
}

// GetOptions parameterizes InnerGet (spec.md §4.E Read).
type GetOptions struct {
	Tx                any
	ReadThrough       bool
	RecordEvent       bool
	Subject           string
	TaskID            string
	Expiry            ExpiryPolicy
	ReturnVersioned   bool
	KeepBinary        bool
	UpdateTTLOnAccess bool
}

// GetResult is the outcome of InnerGet.
type GetResult struct {
	Value []byte
	Ver   version.Version
	Found bool
}

// InnerGet implements spec.md §4.E Read.
func (e *Entry) InnerGet(ctx context.Context, opts GetOptions) (GetResult, error) {
	var (
		result            GetResult
		needLoad          bool
		verAtRelease      version.Version
		expiredOldVal     []byte
		expiredWent       bool
		firedExpired      bool
	)

	err := e.withLock(opts.Tx, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}

		if e.val == nil && e.isNewLocked() && !e.hasFlag(flagUnswapped) {
			row, found, rerr := e.cfg.RowStore.Read(e.key)
			if rerr != nil {
				return NewError(CodeStorageError, rerr.Error())
			}
			e.setFlag(flagUnswapped)
			if found {
				e.val = row.Value
				e.ver = row.Ver
				if row.TTL != 0 || row.ExpireTime != 0 {
					e.ext = e.ext.WithTTL(row.TTL, row.ExpireTime)
				}
			}
		}

		if e.val != nil && e.isExpiredLocked(time.Now()) {
			expiredOldVal, expiredWent = e.expireLocked(e.cfg.VersionGen.NextFromPrev(e.ver))
			firedExpired = true
		}

		if e.val == nil {
			needLoad = opts.ReadThrough && e.cfg.ExternalStore != nil
			verAtRelease = e.ver
			return nil
		}

		result = GetResult{Value: copyBytes(e.val), Ver: e.ver, Found: true}
		if opts.UpdateTTLOnAccess {
			policy := opts.Expiry
			if policy == nil {
				policy = e.cfg.ExpiryPolicy
			}
			if policy != nil {
				e.applyTTLResult(policy.ForAccess())
			}
		}
		return nil
	})
	if err != nil {
		return GetResult{}, err
	}

	if firedExpired {
		if e.cfg.Events != nil && e.cfg.Events.IsRecordable(EventExpired) {
			e.cfg.Events.AddEvent(e.partition, e.key, e.cfg.NodeID, e.ver, EventExpired, expiredOldVal)
		}
		if e.cfg.CQ != nil {
			e.cfg.CQ.OnEntryExpired(e.key, expiredOldVal)
		}
		e.fireObsoleteIfNeeded(expiredWent)
	}

	if result.Found {
		e.recordEvent(opts.RecordEvent, EventRead, result.Ver, result.Value)
		return result, nil
	}
	if !needLoad {
		return GetResult{}, nil
	}

	loadedVal, found, lerr := e.cfg.ExternalStore.Load(ctx, e.key)
	if lerr != nil {
		return GetResult{}, NewError(CodeStorageError, lerr.Error())
	}
	if !found {
		return GetResult{}, nil
	}

	err = e.withLock(opts.Tx, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}
		if !e.ver.Equal(verAtRelease) {
			if e.val != nil {
				result = GetResult{Value: copyBytes(e.val), Ver: e.ver, Found: true}
			}
			return nil
		}
		newVer := e.cfg.VersionGen.NextForLoad(e.ver)
		ttlRes := e.computeTTL(0, false, opts.Expiry, true)
		e.val = loadedVal
		e.ver = newVer
		e.applyTTLResult(ttlRes)
		result = GetResult{Value: copyBytes(e.val), Ver: e.ver, Found: true}
		return nil
	})
	if err != nil {
		return GetResult{}, err
	}
	if result.Found {
		e.recordEvent(opts.RecordEvent, EventRead, result.Ver, result.Value)
	}
	return result, nil
}
