package cacheentry

import (
	"context"
	"time"

	"github.com/Kaychang/ignitecache/lib/future"
	"github.com/Kaychang/ignitecache/lib/version"
)

// EntryProcessor is the TRANSFORM-op callback for the atomic update path
// (spec.md §4.F step 2): given the current value (nil if absent) it returns
// the new value (nil deletes) and whether it modified anything.
type EntryProcessor func(oldVal []byte, found bool) (newVal []byte, modified bool)

// UpdateOp enumerates the kinds of atomic update the caller requests.
type UpdateOp int

const (
	UpdateOpPut UpdateOp = iota
	UpdateOpRemove
	UpdateOpTransform
)

// UpdateRequest is the input to InnerUpdate / the update closure.
type UpdateRequest struct {
	Op          UpdateOp
	NewVal      []byte // for UpdateOpPut
	Processor   EntryProcessor // for UpdateOpTransform

	WriteVersion    version.Version
	HasWriteVersion bool

	Filter       func(EntryView) bool
	Primary      bool
	WriteThrough bool

	ConflictVer    version.Version
	HasConflictVer bool

	Expiry         ExpiryPolicy
	ExplicitTTL    TTL
	HasExplicitTTL bool

	ReadThrough bool

	// Future is completed with the call's UpdateResult or error right
	// before InnerUpdate returns, same contract as SetOptions.Future.
	Future *future.Future[UpdateResult]
}

// UpdateResult is the update closure's output (spec.md §4.F).
type UpdateResult struct {
	Outcome    Outcome
	OldVal     []byte
	NewVal     []byte
	Ver        version.Version
	StoreRefresh bool // true when a conflicting/equal write should refresh the external store with the current value instead of writing nothing
	ProcessorErr error
}

// InnerUpdate implements spec.md §4.E's atomic update path: it builds the
// update closure described in §4.F and invokes the row store's atomic
// Invoke(key, closure), which supplies the current row to the closure and
// applies whatever row operation it returns.
func (e *Entry) InnerUpdate(ctx context.Context, req UpdateRequest) (result UpdateResult, err error) {
	if req.Future != nil {
		defer func() { completeUpdateFuture(req.Future, result, err) }()
	}

	var (
		view        EntryView
		listenerSet ListenerSet
		fireCQ      bool
		wentObsolete bool
	)

	err = e.withLock(nil, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}

		_, _, ierr := e.cfg.RowStore.Invoke(e.key, e.partition, func(row Row, loaded bool) (Row, RowOp) {
			res, newRow, op := e.planUpdate(req, row, loaded)
			result = res
			return newRow, op
		})
		if ierr != nil {
			return NewError(CodeStorageError, ierr.Error())
		}

		switch result.Outcome {
		case OutcomeSuccess:
			e.val = result.NewVal
			e.ver = result.Ver
			if result.NewVal == nil {
				wentObsolete = e.transitionToDeletedOrObsoleteLocked(result.Ver)
			} else {
				e.clearFlag(flagDeleted)
			}
			if e.cfg.Part != nil {
				e.cfg.Part.NextUpdateCounter()
			}
			if e.cfg.WAL != nil {
				rtype := RecordPut
				if result.NewVal == nil {
					rtype = RecordRemove
				}
				if werr := e.cfg.WAL.Log(DataRecord{Type: rtype, Key: e.key, Value: result.NewVal, Ver: result.Ver}); werr != nil {
					return NewError(CodeStorageError, werr.Error())
				}
			}
			view = e.viewLocked()
			if e.cfg.CQ != nil {
				listenerSet, fireCQ = e.cfg.CQ.UpdateListeners(true, req.Primary)
			}
		case OutcomeRemoveNoVal:
			// Already absent; nothing to stage.
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	if result.Outcome == OutcomeSuccess {
		if e.cfg.Interceptor != nil {
			if result.NewVal == nil {
				e.cfg.Interceptor.OnAfterRemove(view)
			} else {
				e.cfg.Interceptor.OnAfterPut(view)
			}
		}
		if fireCQ && e.cfg.CQ != nil {
			e.cfg.CQ.OnEntryUpdated(listenerSet, e.key, result.NewVal, result.OldVal, result.Ver)
		}
		kind := EventPut
		if result.NewVal == nil {
			kind = EventRemoved
		}
		e.recordEvent(true, kind, result.Ver, result.NewVal)
		e.fireObsoleteIfNeeded(wentObsolete)

		if req.WriteThrough && e.cfg.ExternalStore != nil {
			var werr error
			if result.NewVal == nil {
				werr = e.cfg.ExternalStore.Remove(ctx, e.key)
			} else {
				werr = e.cfg.ExternalStore.Put(ctx, e.key, result.NewVal, result.Ver)
			}
			if werr != nil {
				return result, NewError(CodeStorageError, werr.Error())
			}
		}
	}

	if result.StoreRefresh && req.WriteThrough && e.cfg.ExternalStore != nil {
		if werr := e.cfg.ExternalStore.Put(ctx, e.key, result.OldVal, req.WriteVersion); werr != nil {
			return result, NewError(CodeStorageError, werr.Error())
		}
	}

	return result, nil
}

// completeUpdateFuture resolves f with either err or result.
func completeUpdateFuture(f *future.Future[UpdateResult], result UpdateResult, err error) {
	if err != nil {
		f.OnDoneErr(err)
		return
	}
	f.OnDone(result)
}

// planUpdate is the stateless planner described in spec.md §4.F, run while
// the row store's Invoke holds its own per-row latch (and the entry monitor
// is held by the caller). It never mutates the Entry directly; it only
// decides the row operation and the UpdateResult the caller applies.
func (e *Entry) planUpdate(req UpdateRequest, row Row, loaded bool) (UpdateResult, Row, RowOp) {
	// Step 1: load old.
	oldVal := row.Value
	oldVer := row.Ver
	if !loaded {
		oldVal, oldVer = nil, e.ver
	}

	// Step 2: entry processor.
	newVal := req.NewVal
	op := req.Op
	if op == UpdateOpTransform {
		modified := false
		newVal, modified = req.Processor(oldVal, loaded)
		if !modified {
			return UpdateResult{Outcome: OutcomeInvokeNoOp, OldVal: oldVal, Ver: oldVer}, row, RowOpNoop
		}
		if newVal == nil {
			op = UpdateOpRemove
		} else {
			op = UpdateOpPut
		}
	}

	newVer := req.WriteVersion
	if !req.HasWriteVersion {
		newVer = e.cfg.VersionGen.NextFromPrev(oldVer)
	}

	// Step 3: conflict resolution.
	if e.cfg.Resolver != nil {
		resolution, merged := e.cfg.Resolver.Resolve(oldVal, oldVer, newVal, newVer)
		switch resolution {
		case ConflictUseOld:
			refresh := req.Primary && e.cfg.Comparator.Equal(newVer, oldVer)
			return UpdateResult{Outcome: OutcomeConflictUseOld, OldVal: oldVal, Ver: oldVer, StoreRefresh: refresh}, row, RowOpNoop
		case ConflictMerge:
			newVal = merged
		}
	} else if req.Primary {
		// Step 4: version check (only meaningful without a conflict resolver).
		if e.cfg.Comparator.GreaterEqual(oldVer, newVer) {
			refresh := req.Primary && e.cfg.Comparator.Equal(oldVer, newVer)
			return UpdateResult{Outcome: OutcomeVersionCheckFailed, OldVal: oldVal, Ver: oldVer, StoreRefresh: refresh}, row, RowOpNoop
		}
	}

	// Step 5: filter.
	if req.Filter != nil {
		view := EntryView{Key: e.key, Value: oldVal, Ver: oldVer}
		if !req.Filter(view) {
			return UpdateResult{Outcome: OutcomeFilterFailed, OldVal: oldVal, Ver: oldVer}, row, RowOpNoop
		}
	}

	// Step 7: interceptor.
	if e.cfg.Interceptor != nil {
		view := EntryView{Key: e.key, Value: oldVal, Ver: oldVer}
		if op == UpdateOpRemove {
			cancel, v := e.cfg.Interceptor.OnBeforeRemove(view)
			if cancel {
				return UpdateResult{Outcome: OutcomeInterceptorCancel, OldVal: oldVal, Ver: oldVer}, row, RowOpNoop
			}
			if v != nil {
				oldVal = v
			}
		} else {
			rewritten, ok := e.cfg.Interceptor.OnBeforePut(view, newVal)
			if !ok {
				return UpdateResult{Outcome: OutcomeInterceptorCancel, OldVal: oldVal, Ver: oldVer}, row, RowOpNoop
			}
			newVal = rewritten
		}
	}

	if op == UpdateOpRemove {
		if !loaded || oldVal == nil {
			return UpdateResult{Outcome: OutcomeRemoveNoVal, OldVal: oldVal, Ver: oldVer}, row, RowOpNoop
		}
		return UpdateResult{Outcome: OutcomeSuccess, OldVal: oldVal, NewVal: nil, Ver: newVer}, Row{}, RowOpRemove
	}

	// Step 8: compute TTL/expire. A zero explicit TTL demotes to DELETE.
	ttlRes := e.computeTTL(req.ExplicitTTL, req.HasExplicitTTL, req.Expiry, !loaded)
	newRow := Row{Value: newVal, Ver: newVer, TTL: row.TTL, ExpireTime: row.ExpireTime}
	switch {
	case ttlRes == TTLEternal:
		newRow.TTL, newRow.ExpireTime = 0, 0
	case ttlRes == TTLNotChanged:
		// keep row.TTL/ExpireTime as-is
	case ttlRes == 0:
		return UpdateResult{Outcome: OutcomeSuccess, OldVal: oldVal, NewVal: nil, Ver: newVer}, Row{}, RowOpRemove
	case ttlRes > 0:
		newRow.TTL = uint64(ttlRes)
		newRow.ExpireTime = uint64(time.Now().UnixNano()) + newRow.TTL // absolute deadline, as the row store expects
	}

	// Step 9: apply.
	return UpdateResult{Outcome: OutcomeSuccess, OldVal: oldVal, NewVal: newVal, Ver: newVer}, newRow, RowOpPut
}
