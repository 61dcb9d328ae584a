package cacheentry

import (
	"context"

	"github.com/Kaychang/ignitecache/lib/version"
)

// Row is the off-heap representation of one key's value, as stored and
// retrieved through RowStore. It is the unit exchanged between the entry
// core and the row store's Invoke closure (spec.md §4.F).
type Row struct {
	Value      []byte
	Ver        version.Version
	TTL        uint64
	ExpireTime uint64
}

// RowOp is the operation an update closure asks the row store to apply.
type RowOp int

const (
	RowOpNoop RowOp = iota
	RowOpPut
	RowOpRemove
)

// RowStore is the off-heap row store collaborator (spec.md §6). Invoke
// supplies the current row (if any) to fn and atomically applies whatever
// operation fn returns, exactly like mapleImpl.compute's old/new/delete
// contract but generalized to three outcomes instead of a boolean.
type RowStore interface {
	Read(key string) (Row, bool, error)
	Update(key string, row Row, partition uint32) error
	Remove(key string, partition uint32) error
	Invoke(key string, partition uint32, fn func(row Row, loaded bool) (Row, RowOp)) (Row, RowOp, error)
}

// VersionGenerator mints versions for writes originating on this node.
// lib/version.Generator implements this.
type VersionGenerator interface {
	Next() version.Version
	NextFromPrev(prev version.Version) version.Version
	NextForLoad(prev version.Version) version.Version
}

// TTL is the result of an expiry policy call: either a non-negative TTL in
// nanoseconds (zero demotes the write to a delete) or one of the sentinels
// below.
type TTL int64

const (
	// TTLNotChanged leaves the entry's current TTL/expire-time untouched.
	TTLNotChanged TTL = -1
	// TTLEternal clears TTL tracking — the entry never expires.
	TTLEternal TTL = -2
)

// ExpiryPolicy supplies TTLs for the three points spec.md §6 names.
type ExpiryPolicy interface {
	ForCreate() TTL
	ForUpdate() TTL
	ForAccess() TTL
}

// EntryView is the read-only snapshot of an entry's state passed to
// interceptor callbacks. It is captured under the entry lock and is safe to
// read after the lock is released.
type EntryView struct {
	Key        string
	Value      []byte
	Ver        version.Version
	TTL        uint64
	ExpireTime uint64
}

// Interceptor lets a collaborator veto or rewrite puts/removes and observe
// committed ones. onBefore* runs under the entry lock's critical section
// boundary (before I/O); onAfter* runs after the lock is released.
type Interceptor interface {
	// OnBeforePut may rewrite newVal. ok=false vetoes the put entirely.
	OnBeforePut(view EntryView, newVal []byte) (val []byte, ok bool)
	// OnBeforeRemove may veto the remove (cancel=true) or rewrite the value
	// reported to CQ/events.
	OnBeforeRemove(view EntryView) (cancel bool, val []byte)
	OnAfterPut(view EntryView)
	OnAfterRemove(view EntryView)
}

// ListenerSet is an opaque handle returned by CQRegistry.UpdateListeners and
// threaded back into OnEntryUpdated; its shape is owned by the CQ
// collaborator.
type ListenerSet any

// CQRegistry is the continuous-query delivery collaborator (spec.md §6).
type CQRegistry interface {
	UpdateListeners(internal, primary bool) (ListenerSet, bool)
	OnEntryUpdated(set ListenerSet, key string, newVal, oldVal []byte, ver version.Version)
	OnEntryExpired(key string, val []byte)
}

// RecordType distinguishes WAL record kinds relevant to the entry core.
type RecordType int

const (
	RecordPut RecordType = iota
	RecordRemove
	RecordCreate
)

// DataRecord is a single WAL entry.
type DataRecord struct {
	Type  RecordType
	Key   string
	Value []byte
	Ver   version.Version
}

// WAL is the write-ahead log collaborator. A no-op implementation is used
// when WAL is disabled.
type WAL interface {
	Log(rec DataRecord) error
}

// ExternalStore is the write-through/read-through store of record.
type ExternalStore interface {
	Load(ctx context.Context, key string) (val []byte, found bool, err error)
	Put(ctx context.Context, key string, val []byte, ver version.Version) error
	Remove(ctx context.Context, key string) error
}

// EventKind enumerates the event bus kinds the entry core may emit.
type EventKind int

const (
	EventRead EventKind = iota
	EventPut
	EventRemoved
	EventExpired
	EventLocked
	EventUnlocked
)

// EventRecorder is the event-bus collaborator (spec.md §6).
type EventRecorder interface {
	IsRecordable(kind EventKind) bool
	AddEvent(partition uint32, key string, nodeID string, ver version.Version, kind EventKind, newVal []byte)
}

// Partition exposes the per-partition monotone update counter.
type Partition interface {
	NextUpdateCounter() uint64
}

// DRType distinguishes a DR replication record's originating operation.
type DRType int

const (
	DRPut DRType = iota
	DRRemove
)

// DRReplicator is the optional cross-datacenter replication collaborator.
type DRReplicator interface {
	Replicate(key string, val []byte, ttl, expireTime uint64, conflictVer version.Version, drType DRType, topVer uint64) error
}

// ConflictResolution is the outcome of resolving a conflict between the
// entry's current version and an incoming write, used by the update closure
// (spec.md §4.F step 3).
type ConflictResolution int

const (
	ConflictUseNew ConflictResolution = iota
	ConflictUseOld
	ConflictMerge
)

// ConflictResolver decides how an incoming versioned write should be
// reconciled against the entry's current state when DR conflict resolution
// is enabled.
type ConflictResolver interface {
	Resolve(oldVal []byte, oldVer version.Version, newVal []byte, newVer version.Version) (ConflictResolution, []byte)
}
