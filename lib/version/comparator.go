package version

// Comparator implements the total order over Version values described in
// spec.md §4.A: versions compare by (topologyVersion, globalTime, order,
// nodeOrder); with IgnoreTime set the globalTime field is skipped so that
// equivalent logical events minted on different nodes compare equal.
type Comparator struct {
	// IgnoreTime skips the physical-time component of the comparison.
	IgnoreTime bool
}

// NewComparator returns a Comparator with the given ignore-time mode.
func NewComparator(ignoreTime bool) Comparator {
	return Comparator{IgnoreTime: ignoreTime}
}

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater than b
// under this comparator's ordering. The conflict version, if any, is never
// consulted.
func (c Comparator) Compare(a, b Version) int {
	if a.TopologyVersion != b.TopologyVersion {
		return cmpUint64(a.TopologyVersion, b.TopologyVersion)
	}

	if !c.IgnoreTime && a.GlobalTime != b.GlobalTime {
		return cmpInt64(a.GlobalTime, b.GlobalTime)
	}

	if a.Order != b.Order {
		return cmpUint64(a.Order, b.Order)
	}

	if a.NodeOrder != b.NodeOrder {
		return cmpUint32(a.NodeOrder, b.NodeOrder)
	}

	return 0
}

// Greater reports whether a strictly exceeds b under this comparator.
func (c Comparator) Greater(a, b Version) bool {
	return c.Compare(a, b) > 0
}

// GreaterEqual reports whether a is greater than or equal to b under this
// comparator. This is the primary's "equal version -> store refresh" check
// from spec.md §4.A.
func (c Comparator) GreaterEqual(a, b Version) bool {
	return c.Compare(a, b) >= 0
}

// Equal reports whether a and b compare equal under this comparator. Note
// this is weaker than Version.Equal when IgnoreTime is set, or when the
// conflict version differs.
func (c Comparator) Equal(a, b Version) bool {
	return c.Compare(a, b) == 0
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
