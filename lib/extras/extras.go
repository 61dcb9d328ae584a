// Package extras implements the optional metadata bag attached to a cache
// entry (spec.md §4.B): TTL + expire-time, the MVCC candidate set, and the
// obsolete version. The overwhelming majority of live entries carry none of
// these, so the bag is represented as a single nilable pointer — an entry
// with no extras costs exactly one machine word, matching the "compact
// optional metadata" goal without the combinatorial boilerplate of a
// hand-rolled sum type for every {TTL, Mvcc, Obsolete} subset (Go has no
// tagged union primitive; a pointer-to-struct is the idiomatic substitute
// and preserves the same "zero cost when absent" property).
package extras

import (
	"github.com/Kaychang/ignitecache/lib/mvcc"
	"github.com/Kaychang/ignitecache/lib/version"
)

// Extras is the optional metadata bag. A nil *Extras is the "no extras"
// case and must never be mutated in place — every setter below follows the
// copy-on-write discipline spec.md mandates ("setters return a possibly
// different variant; callers must reassign").
type Extras struct {
	ttl        uint64
	expireTime uint64

	candidates *mvcc.CandidateSet

	obsoleteVer    version.Version
	hasObsoleteVer bool

	// deferredDelete overrides the cache-wide deferred-delete switch for
	// this specific entry. Supplements spec.md: see SPEC_FULL.md
	// "deferredDelete() flag" for the rebalance scenario that needs this.
	deferredDeleteSet bool
	deferredDelete    bool
}

// IsEmpty reports whether e carries no extras at all (the common case).
func (e *Extras) IsEmpty() bool {
	if e == nil {
		return true
	}
	return e.ttl == 0 && e.expireTime == 0 &&
		(e.candidates == nil || e.candidates.Len() == 0) &&
		!e.hasObsoleteVer && !e.deferredDeleteSet
}

// clone returns a shallow copy of e, or a fresh zero value if e is nil.
// Every setter operates on a clone so the previous *Extras value (which
// callers may still be holding a reference to under an RCU-style read)
// remains valid.
func (e *Extras) clone() *Extras {
	if e == nil {
		return &Extras{}
	}
	c := *e
	return &c
}

// TTL returns the entry's TTL and expire-time, and whether either is set.
// TTL and expire-time are either both zero ("eternal") or expire-time was
// computed as now+ttl at the most recent setting write.
func (e *Extras) TTL() (ttl, expireTime uint64, ok bool) {
	if e == nil {
		return 0, 0, false
	}
	return e.ttl, e.expireTime, e.ttl != 0 || e.expireTime != 0
}

// WithTTL returns a variant of e with the given TTL/expire-time set. A
// ttl and expireTime of zero clears TTL tracking (eternal entry), which
// may collapse the returned *Extras to nil if nothing else is carried.
func (e *Extras) WithTTL(ttl, expireTime uint64) *Extras {
	c := e.clone()
	c.ttl = ttl
	c.expireTime = expireTime
	return c.normalize()
}

// Candidates returns the entry's MVCC candidate set, creating one lazily
// on first access so callers can Add() without a separate nil-check. The
// returned set is NOT detached from e — entry code must still reassign the
// bag after the first candidate is added, because a previously-nil *Extras
// needs to be replaced on the entry.
func (e *Extras) Candidates() (*Extras, *mvcc.CandidateSet) {
	c := e.clone()
	if c.candidates == nil {
		c.candidates = mvcc.New()
	}
	return c, c.candidates
}

// HasCandidates reports whether e carries a non-empty candidate set without
// allocating one.
func (e *Extras) HasCandidates() bool {
	return e != nil && e.candidates != nil && e.candidates.Len() > 0
}

// WithoutCandidates clears the candidate set, possibly collapsing e to nil.
func (e *Extras) WithoutCandidates() *Extras {
	if e == nil {
		return nil
	}
	c := e.clone()
	c.candidates = nil
	return c.normalize()
}

// ObsoleteVersion returns the version at which the entry was marked
// obsolete, and whether it has been.
func (e *Extras) ObsoleteVersion() (version.Version, bool) {
	if e == nil {
		return version.Zero, false
	}
	return e.obsoleteVer, e.hasObsoleteVer
}

// WithObsoleteVersion marks the entry obsolete as of v. Obsolescence is
// terminal and is the one setter that, once applied, should never be
// "unset" by WithoutObsoleteVersion in production code — that method exists
// only to support tests that assert on the bag's shape.
func (e *Extras) WithObsoleteVersion(v version.Version) *Extras {
	c := e.clone()
	c.obsoleteVer = v
	c.hasObsoleteVer = true
	return c
}

// WithoutObsoleteVersion clears the obsolete marker. Exposed for symmetry
// and tests; production code must never resurrect an obsolete entry.
func (e *Extras) WithoutObsoleteVersion() *Extras {
	if e == nil {
		return nil
	}
	c := e.clone()
	c.hasObsoleteVer = false
	c.obsoleteVer = version.Zero
	return c.normalize()
}

// DeferredDelete returns the per-entry deferred-delete override and whether
// one has been set (absent means "use the cache-wide default").
func (e *Extras) DeferredDelete() (bool, bool) {
	if e == nil {
		return false, false
	}
	return e.deferredDelete, e.deferredDeleteSet
}

// WithDeferredDelete sets a per-entry deferred-delete override.
func (e *Extras) WithDeferredDelete(enabled bool) *Extras {
	c := e.clone()
	c.deferredDeleteSet = true
	c.deferredDelete = enabled
	return c
}

// normalize collapses an *Extras back to nil if every field has returned to
// its default, keeping the "no extras" case at one pointer indefinitely
// rather than leaking an allocated-but-empty bag forever.
func (e *Extras) normalize() *Extras {
	if e == nil {
		return nil
	}
	if e.ttl == 0 && e.expireTime == 0 &&
		(e.candidates == nil || e.candidates.Len() == 0) &&
		!e.hasObsoleteVer && !e.deferredDeleteSet {
		return nil
	}
	return e
}
