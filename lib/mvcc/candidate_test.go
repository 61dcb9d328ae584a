package mvcc

import (
	"testing"

	"github.com/Kaychang/ignitecache/lib/version"
)

func TestEmptySetHasNoOwner(t *testing.T) {
	s := New()
	if s.AnyOwner() {
		t.Fatalf("empty set should have no owner")
	}
	if !s.IsEmpty() {
		t.Fatalf("empty set should report IsEmpty")
	}
}

func TestFirstCandidateIsGrantedImmediately(t *testing.T) {
	s := New()
	c := s.Add(Candidate{Local: true, ThreadID: 1})

	if !c.Owner {
		t.Fatalf("first candidate should be granted ownership")
	}
	if !s.OwnedByLocalThread(1) {
		t.Fatalf("expected thread 1 to own the entry")
	}
}

func TestSecondCandidateQueuesPending(t *testing.T) {
	s := New()
	s.Add(Candidate{Local: true, ThreadID: 1})
	second := s.Add(Candidate{Local: true, ThreadID: 2})

	if second.Owner {
		t.Fatalf("second candidate should not be granted ownership yet")
	}
	if s.OwnedByLocalThread(2) {
		t.Fatalf("thread 2 should not yet own the entry")
	}
}

func TestRemovingOwnerPromotesNextPending(t *testing.T) {
	s := New()
	first := s.Add(Candidate{Local: true, ThreadID: 1})
	s.Add(Candidate{Local: true, ThreadID: 2})

	if !s.Remove(first) {
		t.Fatalf("expected to remove the first candidate")
	}
	if !s.OwnedByLocalThread(2) {
		t.Fatalf("expected thread 2 to be promoted to owner")
	}
}

func TestIsEmptyWithExclusion(t *testing.T) {
	s := New()
	self := s.Add(Candidate{Local: true, ThreadID: 1})

	if s.IsEmpty() {
		t.Fatalf("set with one candidate should not be empty")
	}
	if !s.IsEmpty(self) {
		t.Fatalf("set should be empty once the sole candidate is excluded")
	}
}

func TestRemoteCandidateIdentifiedByVersion(t *testing.T) {
	s := New()
	v := version.Version{Order: 42, NodeOrder: 7}
	s.Add(Candidate{Ver: v})

	if !s.RemoveByVersion(v) {
		t.Fatalf("expected remote candidate to be removed by version")
	}
	if !s.IsEmpty() {
		t.Fatalf("set should be empty after removing the only candidate")
	}
}

func TestOwnedByRemoteNode(t *testing.T) {
	s := New()
	s.Add(Candidate{NodeID: "node-2"})

	if !s.OwnedBy("node-2", 0) {
		t.Fatalf("expected node-2 to own the entry")
	}
	if s.OwnedBy("node-3", 0) {
		t.Fatalf("node-3 should not own the entry")
	}
}
