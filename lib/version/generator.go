package version

import (
	"sync/atomic"
	"time"
)

// Generator mints monotonically increasing versions for a single node. It
// satisfies the "Version Generator" external interface from spec.md §6:
// Next(), NextFromPrev(prev), NextForLoad(prev).
//
// Thread-safety: Generator is safe for concurrent use; the order counter is
// an atomic.Uint64 advanced with Add, and raised to a floor with a
// compare-and-swap loop in bumpOrderAtLeast.
type Generator struct {
	nodeOrder       uint32
	dataCenterId    uint8
	topologyVersion atomic.Uint64
	order           atomic.Uint64
	clock           func() int64
}

// NewGenerator creates a Generator for the given node and data center.
func NewGenerator(nodeOrder uint32, dataCenterId uint8) *Generator {
	return &Generator{
		nodeOrder:    nodeOrder,
		dataCenterId: dataCenterId,
		clock:        func() int64 { return time.Now().UnixNano() },
	}
}

// SetTopologyVersion updates the topology version stamped on subsequently
// minted versions. It only ever moves forward, mirroring
// mapleImpl.SetWriteIdx's monotonic compare-and-swap loop.
func (g *Generator) SetTopologyVersion(v uint64) {
	for {
		cur := g.topologyVersion.Load()
		if v <= cur {
			return
		}
		if g.topologyVersion.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Next mints a fresh version for a new write originating on this node.
func (g *Generator) Next() Version {
	order := g.order.Add(1)
	return Version{
		TopologyVersion: g.topologyVersion.Load(),
		GlobalTime:      g.clock(),
		Order:           order,
		NodeOrder:       g.nodeOrder,
		DataCenterId:    g.dataCenterId,
	}
}

// NextFromPrev mints a version guaranteed to compare greater than prev
// under the default (time-sensitive) comparator, advancing the local order
// counter at least past prev's order component if prev originated on this
// node. Used by the update closure when no explicit writeVersion is given.
func (g *Generator) NextFromPrev(prev Version) Version {
	if prev.NodeOrder == g.nodeOrder {
		g.bumpOrderAtLeast(prev.Order)
	}
	return g.Next()
}

// NextForLoad mints a version for a value installed from preload or
// persistence (initialValue in spec.md §4.E). Semantically identical to
// NextFromPrev; kept as a distinct method because callers reason about it
// separately (no WAL record of the prior in-memory state exists yet).
func (g *Generator) NextForLoad(prev Version) Version {
	return g.NextFromPrev(prev)
}

func (g *Generator) bumpOrderAtLeast(minOrder uint64) {
	for {
		cur := g.order.Load()
		if cur >= minOrder {
			return
		}
		if g.order.CompareAndSwap(cur, minOrder) {
			return
		}
	}
}
