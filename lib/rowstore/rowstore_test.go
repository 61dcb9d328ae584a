package rowstore

import (
	"testing"
	"time"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
)

func newTestStore(t *testing.T) *Store {
	s := New(&Options{NumShards: 2, GCInterval: 5 * time.Millisecond})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadMissOnUnknownKey(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Read("missing")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Fatal("Read should report a miss for an unknown key")
	}
}

func TestUpdateThenRead(t *testing.T) {
	s := newTestStore(t)
	ver := version.Version{Order: 1, NodeOrder: 1}

	if err := s.Update("k1", cacheentry.Row{Value: []byte("v1"), Ver: ver}, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}

	row, found, err := s.Read("k1")
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	if string(row.Value) != "v1" || !row.Ver.Equal(ver) {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestRemoveDeletesKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.Update("k1", cacheentry.Row{Value: []byte("v1")}, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Remove("k1", 0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, found, _ := s.Read("k1")
	if found {
		t.Fatal("key should be gone after Remove")
	}
}

func TestInvokeSeesCurrentRowAndApplies(t *testing.T) {
	s := newTestStore(t)

	row, op, err := s.Invoke("k1", 0, func(row cacheentry.Row, loaded bool) (cacheentry.Row, cacheentry.RowOp) {
		if loaded {
			t.Fatal("a brand new key must not be reported as loaded")
		}
		return cacheentry.Row{Value: []byte("v1"), Ver: version.Version{Order: 1}}, cacheentry.RowOpPut
	})
	if err != nil || op != cacheentry.RowOpPut {
		t.Fatalf("Invoke (create): row=%+v op=%v err=%v", row, op, err)
	}

	row, op, err = s.Invoke("k1", 0, func(row cacheentry.Row, loaded bool) (cacheentry.Row, cacheentry.RowOp) {
		if !loaded || string(row.Value) != "v1" {
			t.Fatalf("Invoke did not see the previously written row: loaded=%v row=%+v", loaded, row)
		}
		return row, cacheentry.RowOpNoop
	})
	if err != nil || op != cacheentry.RowOpNoop {
		t.Fatalf("Invoke (noop): op=%v err=%v", op, err)
	}

	_, op, err = s.Invoke("k1", 0, func(row cacheentry.Row, loaded bool) (cacheentry.Row, cacheentry.RowOp) {
		return cacheentry.Row{}, cacheentry.RowOpRemove
	})
	if err != nil || op != cacheentry.RowOpRemove {
		t.Fatalf("Invoke (remove): op=%v err=%v", op, err)
	}
	if _, found, _ := s.Read("k1"); found {
		t.Fatal("key should be gone after an Invoke that returns RowOpRemove")
	}
}

func TestExpiredRowReadsAsMiss(t *testing.T) {
	s := newTestStore(t)
	past := uint64(time.Now().Add(-time.Hour).UnixNano())

	if err := s.Update("k1", cacheentry.Row{Value: []byte("v1"), ExpireTime: past}, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, found, err := s.Read("k1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Fatal("a row past its expire time must read as a miss")
	}
}

func TestBackgroundGCClearsExpiredValue(t *testing.T) {
	s := newTestStore(t)
	soon := uint64(time.Now().Add(20 * time.Millisecond).UnixNano())

	if err := s.Update("k1", cacheentry.Row{Value: []byte("v1"), ExpireTime: soon}, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, found, _ := s.Read("k1")
		if !found {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the background collector to expire k1 within the deadline")
}

func TestBatchSwapWriterFlushRemovesEveryQueuedKey(t *testing.T) {
	s := newTestStore(t)
	ver := version.Version{Order: 1, NodeOrder: 1}
	for _, k := range []string{"k1", "k2", "k3"} {
		if err := s.Update(k, cacheentry.Row{Value: []byte(k), Ver: ver}, 0); err != nil {
			t.Fatalf("Update %s: %v", k, err)
		}
	}

	w := s.NewBatchSwapWriter()
	w.Add(cacheentry.SwapEntry{Key: "k1", ValueBytes: []byte("k1"), Ver: ver})
	w.Add(cacheentry.SwapEntry{Key: "k2", ValueBytes: []byte("k2"), Ver: ver})
	if w.Len() != 2 {
		t.Fatalf("expected 2 queued snapshots, got %d", w.Len())
	}

	flushed := w.Flush()
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed snapshots, got %d", len(flushed))
	}
	if w.Len() != 0 {
		t.Fatal("Flush should clear the pending queue")
	}

	for _, k := range []string{"k1", "k2"} {
		if _, found, _ := s.Read(k); found {
			t.Fatalf("expected %s to be removed after Flush", k)
		}
	}
	if _, found, _ := s.Read("k3"); !found {
		t.Fatal("k3 was never queued and should still be present")
	}
}
