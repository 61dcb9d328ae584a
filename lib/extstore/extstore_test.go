package extstore

import (
	"context"
	"testing"
	"time"

	"github.com/Kaychang/ignitecache/lib/version"
)

func TestMapStorePutThenLoad(t *testing.T) {
	m := NewMapStore()
	ver := version.Version{Order: 1}
	if err := m.Put(context.Background(), "k1", []byte("v1"), ver); err != nil {
		t.Fatalf("Put: %v", err)
	}

	val, found, err := m.Load(context.Background(), "k1")
	if err != nil || !found || string(val) != "v1" {
		t.Fatalf("Load: val=%q found=%v err=%v", val, found, err)
	}
	if got, ok := m.VersionOf("k1"); !ok || !got.Equal(ver) {
		t.Fatalf("VersionOf: %v, %v", got, ok)
	}
}

func TestMapStoreLoadMiss(t *testing.T) {
	m := NewMapStore()
	_, found, err := m.Load(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("Load on missing key: found=%v err=%v", found, err)
	}
}

func TestMapStoreRemove(t *testing.T) {
	m := NewMapStore()
	_ = m.Put(context.Background(), "k1", []byte("v1"), version.Version{})
	if err := m.Remove(context.Background(), "k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, found, _ := m.Load(context.Background(), "k1")
	if found {
		t.Fatal("key should be gone after Remove")
	}
}

func TestAsyncPutEventuallyReachesTheWrappedStore(t *testing.T) {
	inner := NewMapStore()
	a := NewAsync(inner, 4)
	defer a.Close()

	if err := a.Put(context.Background(), "k1", []byte("v1"), version.Version{Order: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if val, found, _ := inner.Load(context.Background(), "k1"); found && string(val) == "v1" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected the queued write to reach the wrapped store")
}

func TestAsyncCloseDrainsPendingWrites(t *testing.T) {
	inner := NewMapStore()
	a := NewAsync(inner, 8)

	for i := 0; i < 5; i++ {
		_ = a.Put(context.Background(), "k", []byte{byte(i)}, version.Version{Order: uint64(i)})
	}
	a.Close()

	val, found, _ := inner.Load(context.Background(), "k")
	if !found || val[0] != 4 {
		t.Fatalf("expected the last queued write to have landed after Close, got %v found=%v", val, found)
	}
}
