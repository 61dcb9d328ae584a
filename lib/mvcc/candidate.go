// Package mvcc implements the ordered lock-candidate list attached to a
// cache entry (spec.md §4.D). A CandidateSet tracks pending and granted
// lock owners for one entry; it is intrusive and deliberately not
// thread-safe on its own — callers (the cache entry core) must hold the
// entry's monitor for the duration of any mutation, exactly like the rest
// of the per-entry metadata described in spec.md §5.
package mvcc

import "github.com/Kaychang/ignitecache/lib/version"

// Candidate is a single lock request against an entry: either a pending
// request waiting to be granted, or a granted owner.
type Candidate struct {
	Ver      version.Version
	NodeID   string // empty for a purely local candidate
	ThreadID int64  // local thread/transaction identifier; meaningful when Local is true
	Local    bool
	Owner    bool // true once granted ownership
}

// sameIdentity reports whether two candidates refer to the same logical
// requester (same node+thread for local candidates, same version
// otherwise, matching GridCacheMvccCandidate's equals()).
func (c Candidate) sameIdentity(o Candidate) bool {
	if c.Local && o.Local {
		return c.NodeID == o.NodeID && c.ThreadID == o.ThreadID
	}
	return c.Ver.Equal(o.Ver)
}

// CandidateSet is a small, ordered list of lock candidates for one entry.
// Most entries carry zero or one candidate, so the backing slice starts
// nil and only grows on demand (small-vector with intrusive ordering, per
// spec.md "Design Notes").
type CandidateSet struct {
	candidates []Candidate
}

// New returns an empty candidate set.
func New() *CandidateSet {
	return &CandidateSet{}
}

// Len returns the number of candidates currently tracked.
func (s *CandidateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candidates)
}

// Add appends a new candidate to the end of the list. The first candidate
// added to an empty set is granted ownership immediately (locks are
// acquired in request order); subsequent candidates queue as pending.
func (s *CandidateSet) Add(c Candidate) Candidate {
	if len(s.candidates) == 0 {
		c.Owner = true
	}
	s.candidates = append(s.candidates, c)
	return c
}

// Remove removes the candidate matching c's identity (local node+thread, or
// version for remote candidates). It reports whether a candidate was
// removed, and promotes the new head of the list to Owner if the removed
// candidate was the current owner.
func (s *CandidateSet) Remove(c Candidate) bool {
	for i, existing := range s.candidates {
		if existing.sameIdentity(c) {
			wasOwner := existing.Owner
			s.candidates = append(s.candidates[:i], s.candidates[i+1:]...)
			if wasOwner {
				s.promoteHead()
			}
			return true
		}
	}
	return false
}

// RemoveByVersion removes a remote candidate identified only by version,
// as used when a remote node releases a lock it previously requested.
func (s *CandidateSet) RemoveByVersion(v version.Version) bool {
	return s.Remove(Candidate{Ver: v})
}

func (s *CandidateSet) promoteHead() {
	if len(s.candidates) == 0 {
		return
	}
	s.candidates[0].Owner = true
}

// PromoteNext is an alias for promoting the current head explicitly; it is
// exposed for callers that just released the current owner out-of-band
// (e.g. a timed-out pending lock) and need the new owner recomputed.
func (s *CandidateSet) PromoteNext() (Candidate, bool) {
	s.promoteHead()
	if len(s.candidates) == 0 {
		return Candidate{}, false
	}
	return s.candidates[0], true
}

// Owner returns the current granted owner, if any.
func (s *CandidateSet) Owner() (Candidate, bool) {
	if s == nil || len(s.candidates) == 0 {
		return Candidate{}, false
	}
	if s.candidates[0].Owner {
		return s.candidates[0], true
	}
	return Candidate{}, false
}

// AnyOwner reports whether any candidate currently holds ownership. Used by
// the entry core to decide whether a removal may fire an "unlocked" style
// event immediately.
func (s *CandidateSet) AnyOwner() bool {
	_, ok := s.Owner()
	return ok
}

// IsEmpty reports whether the set has no candidates other than those
// matching one of the excluded identities. This lets a removing
// transaction ask "is anyone other than me still holding or waiting on
// this entry?" without first removing its own candidate.
func (s *CandidateSet) IsEmpty(exclude ...Candidate) bool {
	if s == nil {
		return true
	}
	for _, c := range s.candidates {
		excluded := false
		for _, e := range exclude {
			if c.sameIdentity(e) {
				excluded = true
				break
			}
		}
		if !excluded {
			return false
		}
	}
	return true
}

// OwnedByLocalThread reports whether the current owner is a local
// candidate with the given thread id.
func (s *CandidateSet) OwnedByLocalThread(threadID int64) bool {
	owner, ok := s.Owner()
	return ok && owner.Local && owner.ThreadID == threadID
}

// OwnedBy reports whether the current owner matches the given node and
// thread id (thread id is ignored for remote candidates).
func (s *CandidateSet) OwnedBy(nodeID string, threadID int64) bool {
	owner, ok := s.Owner()
	if !ok {
		return false
	}
	if owner.Local {
		return nodeID == "" && owner.ThreadID == threadID
	}
	return owner.NodeID == nodeID
}

// All returns a defensive copy of the current candidate list, ordered from
// the current owner (if any) to the most recently queued pending request.
func (s *CandidateSet) All() []Candidate {
	if s == nil {
		return nil
	}
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}
