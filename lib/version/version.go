// Package version implements the monotonic logical clock used to order
// writes to a single cache entry and, embedded as a conflict version, to
// compare entries across data centers for DR (disaster recovery) purposes.
//
// A Version is the tuple (topologyVersion, order, nodeOrder, dataCenterId)
// plus a physical globalTime component used for ordinary ordering. The
// comparator optionally ignores globalTime ("ignore-time" mode) so that
// logically equivalent events originating on different nodes compare equal.
package version

import "fmt"

// Version identifies a single write to a cache entry.
//
// order is a per-node monotonic counter minted by a Generator; nodeOrder
// identifies the node that minted it. globalTime is physical wall-clock
// time captured at mint time and is used only for ordinary ordering, never
// for DR comparisons.
type Version struct {
	TopologyVersion uint64
	GlobalTime      int64
	Order           uint64
	NodeOrder       uint32
	DataCenterId    uint8

	// Conflict is an optional secondary version carried for cross-datacenter
	// comparison. It is never consulted by ordinary ordering (Compare),
	// only by a conflict resolver that explicitly asks for it.
	Conflict *Version
}

// Zero is the version held by an entry that has never been written.
var Zero = Version{}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return v == Zero
}

// WithConflict returns a copy of v carrying the given conflict version.
func (v Version) WithConflict(c Version) Version {
	v.Conflict = &c
	return v
}

// ConflictVersion returns the embedded conflict version and whether one is
// present. DR conflict resolvers use this; ordinary comparators never do.
func (v Version) ConflictVersion() (Version, bool) {
	if v.Conflict == nil {
		return Zero, false
	}
	return *v.Conflict, true
}

func (v Version) String() string {
	return fmt.Sprintf("Version{top=%d, time=%d, order=%d, node=%d, dc=%d}",
		v.TopologyVersion, v.GlobalTime, v.Order, v.NodeOrder, v.DataCenterId)
}

// Equal compares two versions field-by-field, including the conflict
// version. Use Compare for ordering; Equal is for exact-tuple equality
// (e.g. detecting a resurrection resulting in the same version being
// re-assigned, or test assertions).
func (v Version) Equal(o Version) bool {
	if v.TopologyVersion != o.TopologyVersion ||
		v.GlobalTime != o.GlobalTime ||
		v.Order != o.Order ||
		v.NodeOrder != o.NodeOrder ||
		v.DataCenterId != o.DataCenterId {
		return false
	}
	switch {
	case v.Conflict == nil && o.Conflict == nil:
		return true
	case v.Conflict == nil || o.Conflict == nil:
		return false
	default:
		return v.Conflict.Equal(*o.Conflict)
	}
}
