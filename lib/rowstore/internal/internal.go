// Package internal holds the sharded storage primitives behind lib/rowstore:
// one xsync.MapOf per shard plus the expire heap and the event queue that
// feed its garbage collector. It mirrors lib/db/engines/maple/internal,
// generalized from a flat byte value to a versioned, TTL-bearing row. Row
// tombstones are entry-level state owned by lib/cacheentry, not by the row
// store, so this package carries no delete heap.
package internal

import (
	"fmt"

	"github.com/Kaychang/ignitecache/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

type EventType int

const (
	EventTWrite EventType = iota
	EventTDelete
)

func (e EventType) String() string {
	switch e {
	case EventTWrite:
		return "Write"
	case EventTDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type EventType
	Key  util.UintKey
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Key: %d}", e.Type, e.Key)
}

// Entry is one row plus the original string key, kept alongside the row so
// the garbage collector (which only has the hashed key) can still identify
// what it is collecting for diagnostics.
type Entry struct {
	Key      string
	Value    []byte
	Ver      RowVersion
	ExpireAt uint64 // absolute nanosecond deadline; 0 = no expiry
}

// RowVersion duplicates the fields of version.Version that rowstore needs
// to carry without importing lib/version here, keeping this package
// dependency-free the way lib/db/engines/maple/internal is.
type RowVersion struct {
	TopologyVersion uint64
	GlobalTime      int64
	Order           uint64
	NodeOrder       uint32
	DataCenterId    uint8
}

// TTLInfo reports whether the entry's value has expired, given the current
// time in nanoseconds. Mirrors maple's internal.Entry.TTLInfo, minus the
// deletion half of that method (see the tombstone note above).
func (e Entry) TTLInfo(nowNs uint64) (isExpired bool) {
	return e.ExpireAt != 0 && nowNs >= e.ExpireAt
}

// Shard is one partition of the row store: its own map, its own GC heap and
// its own event queue, so shards never contend with each other.
type Shard struct {
	Data       *xsync.MapOf[util.UintKey, Entry]
	ExpireHeap *util.MapHeap
	Events     *util.LockFreeMPSC[Event]
}

func NewShard(hasher func(util.UintKey, uint64) uint64) *Shard {
	return &Shard{
		Data:       xsync.NewMapOfWithHasher[util.UintKey, Entry](hasher),
		ExpireHeap: util.NewMapHeap(),
		Events:     util.NewLockFreeMPSC[Event](),
	}
}

// GetShard picks the shard responsible for key the same way maple does:
// shift off the low bits (which a typical hash clusters less usefully) and
// mod by the shard count.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
