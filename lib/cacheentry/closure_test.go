package cacheentry

import (
	"context"
	"testing"

	"github.com/Kaychang/ignitecache/lib/future"
	"github.com/Kaychang/ignitecache/lib/version"
)

func TestInnerUpdatePutOnNewKey(t *testing.T) {
	e := newTestEntry(&Config{})

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op:     UpdateOpPut,
		NewVal: []byte("v1"),
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeSuccess || string(res.NewVal) != "v1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, err := e.InnerGet(context.Background(), GetOptions{})
	if err != nil || !got.Found || string(got.Value) != "v1" {
		t.Fatalf("InnerGet after InnerUpdate: %+v, err=%v", got, err)
	}
}

// TestInnerUpdateEntryProcessorNoOp covers spec.md §8 scenario 5: a
// transform that reports no modification leaves the row untouched and is
// reported as OutcomeInvokeNoOp.
func TestInnerUpdateEntryProcessorNoOp(t *testing.T) {
	e := newTestEntry(&Config{})
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1")}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	noop := func(oldVal []byte, found bool) ([]byte, bool) { return oldVal, false }
	res, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpTransform, Processor: noop})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeInvokeNoOp {
		t.Fatalf("expected OutcomeInvokeNoOp, got %+v", res)
	}

	got, _ := e.InnerGet(context.Background(), GetOptions{})
	if string(got.Value) != "v1" {
		t.Fatalf("a no-op transform must not change the stored value, got %q", got.Value)
	}
}

func TestInnerUpdateEntryProcessorTransformsToRemove(t *testing.T) {
	e := newTestEntry(&Config{})
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1")}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	toRemove := func(oldVal []byte, found bool) ([]byte, bool) { return nil, true }
	res, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpTransform, Processor: toRemove})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.NewVal != nil {
		t.Fatalf("expected a successful removal, got %+v", res)
	}

	got, _ := e.InnerGet(context.Background(), GetOptions{})
	if got.Found {
		t.Fatalf("expected a miss after a transform-to-remove, got %+v", got)
	}
}

// TestInnerUpdateVersionCheckFailedTriggersStoreRefresh covers spec.md §8
// scenario 3's equal-version boundary: a primary write carrying a version
// equal to the entry's current one is rejected as a no-op write but still
// refreshes the external store instead of silently dropping it.
func TestInnerUpdateVersionCheckFailedTriggersStoreRefresh(t *testing.T) {
	ext := newMemExternalStore()
	e := newTestEntry(&Config{ExternalStore: ext})

	curVer := version.Version{Order: 5, NodeOrder: 1}
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v1"),
		WriteVersion: curVer, HasWriteVersion: true,
		Primary: true, WriteThrough: true,
	}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v2"),
		WriteVersion: curVer, HasWriteVersion: true,
		Primary: true, WriteThrough: true,
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeVersionCheckFailed {
		t.Fatalf("expected OutcomeVersionCheckFailed for an equal-version write, got %+v", res)
	}
	if !res.StoreRefresh {
		t.Fatal("an equal-version conflict must request a store refresh")
	}
	if string(ext.vals["k1"]) != "v1" {
		t.Fatalf("store refresh must rewrite the existing value, not the rejected one: got %q", ext.vals["k1"])
	}
}

func TestInnerUpdateVersionCheckFailedOnStrictlyStaleVersion(t *testing.T) {
	e := newTestEntry(&Config{})

	highVer := version.Version{Order: 5, NodeOrder: 1}
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v1"),
		WriteVersion: highVer, HasWriteVersion: true,
		Primary: true,
	}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	staleVer := version.Version{Order: 1, NodeOrder: 1}
	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v2"),
		WriteVersion: staleVer, HasWriteVersion: true,
		Primary: true,
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeVersionCheckFailed {
		t.Fatalf("expected OutcomeVersionCheckFailed, got %+v", res)
	}
	if res.StoreRefresh {
		t.Fatal("a strictly stale write is not a store-refresh case")
	}
}

// TestInnerUpdateConflictUseOldTriggersStoreRefresh covers spec.md §8
// scenario 3's "Conflict USE_OLD with equal versions, writeThrough on" case.
func TestInnerUpdateConflictUseOldTriggersStoreRefresh(t *testing.T) {
	ext := newMemExternalStore()
	resolver := conflictResolverFunc(func(oldVal []byte, oldVer version.Version, newVal []byte, newVer version.Version) (ConflictResolution, []byte) {
		if oldVer.Equal(newVer) {
			return ConflictUseOld, nil
		}
		return ConflictUseNew, nil
	})
	e := newTestEntry(&Config{ExternalStore: ext, Resolver: resolver})

	ver := version.Version{Order: 1, NodeOrder: 1}
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v1"),
		WriteVersion: ver, HasWriteVersion: true,
		Primary: true, WriteThrough: true,
	}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v2"),
		WriteVersion: ver, HasWriteVersion: true,
		Primary: true, WriteThrough: true,
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeConflictUseOld {
		t.Fatalf("expected OutcomeConflictUseOld, got %+v", res)
	}
	if !res.StoreRefresh {
		t.Fatal("USE_OLD with equal versions must request a store refresh")
	}
	if string(ext.vals["k1"]) != "v1" {
		t.Fatalf("store refresh must keep the old value, got %q", ext.vals["k1"])
	}
}

func TestInnerUpdateFilterRejection(t *testing.T) {
	e := newTestEntry(&Config{})
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1")}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v2"),
		Filter: func(EntryView) bool { return false },
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeFilterFailed {
		t.Fatalf("expected OutcomeFilterFailed, got %+v", res)
	}
}

func TestInnerUpdateInterceptorCancel(t *testing.T) {
	e := newTestEntry(&Config{Interceptor: vetoInterceptor{}})

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1")})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeInterceptorCancel {
		t.Fatalf("expected OutcomeInterceptorCancel, got %+v", res)
	}
}

func TestInnerUpdateExplicitZeroTTLDemotesToRemove(t *testing.T) {
	e := newTestEntry(&Config{})
	if _, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1")}); err != nil {
		t.Fatalf("setup InnerUpdate: %v", err)
	}

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{
		Op: UpdateOpPut, NewVal: []byte("v2"),
		HasExplicitTTL: true, ExplicitTTL: 0,
	})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.NewVal != nil {
		t.Fatalf("a zero explicit TTL on update must demote to a successful remove, got %+v", res)
	}

	got, _ := e.InnerGet(context.Background(), GetOptions{})
	if got.Found {
		t.Fatalf("expected a miss after a zero-TTL update, got %+v", got)
	}
}

func TestInnerUpdateRemoveOnAbsentKeyIsNoVal(t *testing.T) {
	e := newTestEntry(&Config{})
	res, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpRemove})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if res.Outcome != OutcomeRemoveNoVal {
		t.Fatalf("expected OutcomeRemoveNoVal, got %+v", res)
	}
}

// TestInnerUpdateCompletesAttachedFuture covers spec.md §2's data flow step
// "complete any attached Future Adapter" for the atomic update path.
func TestInnerUpdateCompletesAttachedFuture(t *testing.T) {
	e := newTestEntry(&Config{})
	f := future.New[UpdateResult]()

	res, err := e.InnerUpdate(context.Background(), UpdateRequest{Op: UpdateOpPut, NewVal: []byte("v1"), Future: f})
	if err != nil {
		t.Fatalf("InnerUpdate: %v", err)
	}
	if !f.IsDone() {
		t.Fatal("expected the attached future to be completed")
	}
	got, ferr := f.Get()
	if ferr != nil {
		t.Fatalf("future.Get: %v", ferr)
	}
	if got.Outcome != res.Outcome || string(got.NewVal) != string(res.NewVal) {
		t.Fatalf("future result %+v does not match InnerUpdate result %+v", got, res)
	}
}

type conflictResolverFunc func(oldVal []byte, oldVer version.Version, newVal []byte, newVer version.Version) (ConflictResolution, []byte)

func (f conflictResolverFunc) Resolve(oldVal []byte, oldVer version.Version, newVal []byte, newVer version.Version) (ConflictResolution, []byte) {
	return f(oldVal, oldVer, newVal, newVer)
}
