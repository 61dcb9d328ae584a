package cq

import (
	"testing"

	"github.com/Kaychang/ignitecache/lib/version"
)

type recordingListener struct {
	updates []string
	expired []string
}

func (r *recordingListener) OnUpdate(key string, newVal, oldVal []byte, ver version.Version) {
	r.updates = append(r.updates, key)
}
func (r *recordingListener) OnExpired(key string, val []byte) {
	r.expired = append(r.expired, key)
}

func TestUpdateListenersReportsWhenEmpty(t *testing.T) {
	r := NewRegistry()
	set, fire := r.UpdateListeners(true, true)
	if fire {
		t.Fatal("an empty registry must never report anything to fire")
	}
	r.OnEntryUpdated(set, "k1", []byte("v1"), nil, version.Version{})
}

func TestOnEntryUpdatedDeliversOnlyToMatchingFilter(t *testing.T) {
	r := NewRegistry()
	matching := &recordingListener{}
	other := &recordingListener{}
	r.Register(func(key string) bool { return key == "k1" }, matching, false)
	r.Register(func(key string) bool { return key == "k2" }, other, false)

	set, fire := r.UpdateListeners(false, true)
	if !fire {
		t.Fatal("expected listeners to fire")
	}
	r.OnEntryUpdated(set, "k1", []byte("v1"), nil, version.Version{})

	if len(matching.updates) != 1 || matching.updates[0] != "k1" {
		t.Fatalf("matching listener should have received k1, got %v", matching.updates)
	}
	if len(other.updates) != 0 {
		t.Fatalf("non-matching listener should not have been notified, got %v", other.updates)
	}
}

func TestInternalNonPrimaryUpdateSkipsListenersWithoutIncludeLocal(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Register(nil, l, false)

	_, fire := r.UpdateListeners(true, false)
	if fire {
		t.Fatal("an internal, non-primary update must not fire a listener with includeLocal=false")
	}
}

func TestIncludeLocalListenerStillFiresOnInternalUpdate(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Register(nil, l, true)

	set, fire := r.UpdateListeners(true, false)
	if !fire {
		t.Fatal("an includeLocal listener must still fire on an internal update")
	}
	r.OnEntryUpdated(set, "k1", []byte("v1"), nil, version.Version{})
	if len(l.updates) != 1 {
		t.Fatalf("expected one update delivered, got %d", len(l.updates))
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	_, unregister := r.Register(nil, l, false)
	unregister()

	set, fire := r.UpdateListeners(false, true)
	if fire {
		t.Fatal("an unregistered listener must not be included in the snapshot")
	}
	r.OnEntryUpdated(set, "k1", []byte("v1"), nil, version.Version{})
	if len(l.updates) != 0 {
		t.Fatal("unregistered listener must not receive updates")
	}
}

func TestOnEntryExpiredNotifiesRegardlessOfIncludeLocal(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{}
	r.Register(func(key string) bool { return key == "k1" }, l, false)

	r.OnEntryExpired("k1", []byte("v1"))
	if len(l.expired) != 1 || l.expired[0] != "k1" {
		t.Fatalf("expected k1 to be reported expired, got %v", l.expired)
	}
}
