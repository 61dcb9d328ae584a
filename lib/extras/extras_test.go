package extras

import (
	"testing"

	"github.com/Kaychang/ignitecache/lib/mvcc"
	"github.com/Kaychang/ignitecache/lib/version"
)

func candidateStub() mvcc.Candidate {
	return mvcc.Candidate{Local: true, ThreadID: 1}
}

func TestNilExtrasIsEmpty(t *testing.T) {
	var e *Extras
	if !e.IsEmpty() {
		t.Fatalf("nil extras should be empty")
	}
	if ttl, expire, ok := e.TTL(); ok || ttl != 0 || expire != 0 {
		t.Fatalf("nil extras should report no TTL")
	}
}

func TestWithTTLThenClearCollapsesToNil(t *testing.T) {
	var e *Extras
	e = e.WithTTL(10, 1000)

	ttl, expire, ok := e.TTL()
	if !ok || ttl != 10 || expire != 1000 {
		t.Fatalf("expected TTL to be set, got ttl=%d expire=%d ok=%v", ttl, expire, ok)
	}

	e = e.WithTTL(0, 0)
	if e != nil {
		t.Fatalf("expected extras to collapse to nil once TTL cleared, got %+v", e)
	}
}

func TestCandidatesLazyInit(t *testing.T) {
	var e *Extras

	e, candidates := e.Candidates()
	if candidates == nil {
		t.Fatalf("expected a candidate set to be created")
	}
	if e.HasCandidates() {
		t.Fatalf("a freshly created empty candidate set should not count as HasCandidates")
	}

	candidates.Add(candidateStub())
	if !e.HasCandidates() {
		t.Fatalf("expected HasCandidates after adding a candidate")
	}

	e = e.WithoutCandidates()
	if e != nil {
		t.Fatalf("expected extras to collapse to nil once candidates cleared")
	}
}

func TestObsoleteVersionRoundTrip(t *testing.T) {
	var e *Extras
	v := version.Version{Order: 5}
	e = e.WithObsoleteVersion(v)

	got, ok := e.ObsoleteVersion()
	if !ok || !got.Equal(v) {
		t.Fatalf("expected obsolete version %v, got %v ok=%v", v, got, ok)
	}
}

func TestDeferredDeleteOverrideDefaultsAbsent(t *testing.T) {
	var e *Extras
	if _, ok := e.DeferredDelete(); ok {
		t.Fatalf("expected no deferred-delete override by default")
	}

	e = e.WithDeferredDelete(true)
	val, ok := e.DeferredDelete()
	if !ok || !val {
		t.Fatalf("expected deferred-delete override to be true")
	}
}

func TestCombinedExtrasDoNotCollapsePrematurely(t *testing.T) {
	var e *Extras
	e = e.WithTTL(5, 500)
	e, candidates := e.Candidates()
	candidates.Add(candidateStub())

	e = e.WithTTL(0, 0)
	if e == nil {
		t.Fatalf("extras should remain allocated while candidates are present")
	}
	if e.HasCandidates() != true {
		t.Fatalf("expected candidates to survive clearing TTL")
	}
}
