package expiry

import (
	"testing"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
)

func TestEternalAlwaysReportsEternal(t *testing.T) {
	var p Eternal
	if p.ForCreate() != cacheentry.TTLEternal || p.ForUpdate() != cacheentry.TTLEternal || p.ForAccess() != cacheentry.TTLEternal {
		t.Fatalf("Eternal must report TTLEternal for every call")
	}
}

func TestFixedLeavesAccessUnchanged(t *testing.T) {
	f := Fixed{CreateTTL: 100, UpdateTTL: 200}
	if f.ForCreate() != 100 {
		t.Fatalf("ForCreate() = %d, want 100", f.ForCreate())
	}
	if f.ForUpdate() != 200 {
		t.Fatalf("ForUpdate() = %d, want 200", f.ForUpdate())
	}
	if f.ForAccess() != cacheentry.TTLNotChanged {
		t.Fatalf("ForAccess() = %d, want TTLNotChanged", f.ForAccess())
	}
}

func TestSlidingReportsDurationForEveryCall(t *testing.T) {
	s := Sliding{Duration: 50}
	if s.ForCreate() != 50 || s.ForUpdate() != 50 || s.ForAccess() != 50 {
		t.Fatalf("Sliding must report Duration for create, update and access")
	}
}

func TestCreatedOnlyLeavesUpdateAndAccessUnchanged(t *testing.T) {
	c := CreatedOnly{Duration: 75}
	if c.ForCreate() != 75 {
		t.Fatalf("ForCreate() = %d, want 75", c.ForCreate())
	}
	if c.ForUpdate() != cacheentry.TTLNotChanged || c.ForAccess() != cacheentry.TTLNotChanged {
		t.Fatalf("CreatedOnly must leave update/access TTL unchanged")
	}
}
