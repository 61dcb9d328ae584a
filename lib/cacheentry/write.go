package cacheentry

import (
	"context"

	"github.com/Kaychang/ignitecache/lib/future"
	"github.com/Kaychang/ignitecache/lib/version"
)

// SetOptions parameterizes InnerSet (spec.md §4.E Transactional Set/Remove).
type SetOptions struct {
	Tx              any
	NewVal          []byte
	WriteVersion    version.Version
	HasWriteVersion bool
	Filter          func(EntryView) bool
	Expiry          ExpiryPolicy
	ExplicitTTL     TTL
	HasExplicitTTL  bool
	RecordEvent     bool

	// Future, if set, is completed with the call's result or error right
	// before InnerSet returns (spec.md §2: "complete any attached Future
	// Adapter"), letting an async caller await the same SetResult the
	// synchronous caller gets.
	Future *future.Future[SetResult]
}

// SetResult is the outcome of InnerSet/InnerRemove.
type SetResult struct {
	Success bool
	OldVal  []byte
	NewVal  []byte
	Ver     version.Version
	Outcome Outcome
}

// Outcome tags the result of a write attempt (spec.md §4.E/§4.F).
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRemoveNoVal
	OutcomeVersionCheckFailed
	OutcomeFilterFailed
	OutcomeInvokeNoOp
	OutcomeConflictUseOld
	OutcomeInterceptorCancel
)

// InnerSet implements spec.md §4.E's transactional Set.
func (e *Entry) InnerSet(ctx context.Context, opts SetOptions) (res SetResult, err error) {
	if opts.Future != nil {
		defer func() { completeSetFuture(opts.Future, res, err) }()
	}

	var (
		view         EntryView
		listenerSet  ListenerSet
		fireCQ       bool
		wentObsolete bool
	)

	err = e.withLock(opts.Tx, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}

		beforeView := e.viewLocked()
		if opts.Filter != nil && !opts.Filter(beforeView) {
			res = SetResult{Outcome: OutcomeFilterFailed}
			return nil
		}

		newVal := opts.NewVal
		if e.cfg.Interceptor != nil {
			rewritten, ok := e.cfg.Interceptor.OnBeforePut(beforeView, newVal)
			if !ok {
				res = SetResult{Outcome: OutcomeInterceptorCancel}
				return nil
			}
			newVal = rewritten
		}

		ver := opts.WriteVersion
		if !opts.HasWriteVersion {
			ver = e.cfg.VersionGen.NextFromPrev(e.ver)
		}

		ttlRes := e.computeTTL(opts.ExplicitTTL, opts.HasExplicitTTL, opts.Expiry, e.isNewLocked())
		oldVal := e.val
		e.val = newVal
		e.ver = ver
		e.clearFlag(flagDeleted)
		demote := e.applyTTLResult(ttlRes)
		if demote {
			e.val = nil
		}

		row := Row{Value: e.val, Ver: ver}
		if ttl, expireTime, ok := e.ext.TTL(); ok {
			row.TTL, row.ExpireTime = ttl, expireTime
		}

		var serr error
		if demote {
			serr = e.cfg.RowStore.Remove(e.key, e.partition)
		} else {
			serr = e.cfg.RowStore.Update(e.key, row, e.partition)
		}
		if serr != nil {
			return NewError(CodeStorageError, serr.Error())
		}

		if e.cfg.WAL != nil {
			rtype := RecordPut
			if demote {
				rtype = RecordRemove
			}
			if werr := e.cfg.WAL.Log(DataRecord{Type: rtype, Key: e.key, Value: e.val, Ver: ver}); werr != nil {
				return NewError(CodeStorageError, werr.Error())
			}
		}

		if demote {
			wentObsolete = e.transitionToDeletedOrObsoleteLocked(ver)
		}
		if e.cfg.Part != nil {
			e.cfg.Part.NextUpdateCounter()
		}

		res = SetResult{Success: true, OldVal: oldVal, NewVal: e.val, Ver: ver, Outcome: OutcomeSuccess}
		view = e.viewLocked()
		if e.cfg.CQ != nil {
			listenerSet, fireCQ = e.cfg.CQ.UpdateListeners(true, true)
		}
		return nil
	})
	if err != nil || !res.Success {
		return res, err
	}

	e.notifyAfterPut(view, res, listenerSet, fireCQ, opts.RecordEvent)
	e.fireObsoleteIfNeeded(wentObsolete)

	if e.cfg.ExternalStore != nil {
		if perr := e.cfg.ExternalStore.Put(ctx, e.key, res.NewVal, res.Ver); perr != nil {
			return res, NewError(CodeStorageError, perr.Error())
		}
	}
	return res, nil
}

// RemoveOptions parameterizes InnerRemove.
type RemoveOptions struct {
	Tx              any
	WriteVersion    version.Version
	HasWriteVersion bool
	Filter          func(EntryView) bool
	RecordEvent     bool

	// Future is completed exactly like SetOptions.Future.
	Future *future.Future[SetResult]
}

// InnerRemove implements spec.md §4.E's transactional Remove.
func (e *Entry) InnerRemove(ctx context.Context, opts RemoveOptions) (res SetResult, err error) {
	if opts.Future != nil {
		defer func() { completeSetFuture(opts.Future, res, err) }()
	}

	var (
		view         EntryView
		listenerSet  ListenerSet
		fireCQ       bool
		wentObsolete bool
	)

	err = e.withLock(opts.Tx, func() error {
		if e.isObsoleteLocked() {
			return ErrEntryRemoved
		}

		beforeView := e.viewLocked()
		if opts.Filter != nil && !opts.Filter(beforeView) {
			res = SetResult{Outcome: OutcomeFilterFailed}
			return nil
		}

		cancel := false
		var rewritten []byte
		if e.cfg.Interceptor != nil {
			cancel, rewritten = e.cfg.Interceptor.OnBeforeRemove(beforeView)
		}
		if cancel {
			res = SetResult{Outcome: OutcomeInterceptorCancel}
			return nil
		}

		if e.val == nil {
			res = SetResult{Outcome: OutcomeRemoveNoVal}
			return nil
		}

		ver := opts.WriteVersion
		if !opts.HasWriteVersion {
			ver = e.cfg.VersionGen.NextFromPrev(e.ver)
		}

		oldVal := e.val
		if rewritten != nil {
			oldVal = rewritten
		}
		e.val = nil
		e.ver = ver
		e.ext = e.ext.WithTTL(0, 0)

		if serr := e.cfg.RowStore.Remove(e.key, e.partition); serr != nil {
			return NewError(CodeStorageError, serr.Error())
		}
		if e.cfg.WAL != nil {
			if werr := e.cfg.WAL.Log(DataRecord{Type: RecordRemove, Key: e.key, Ver: ver}); werr != nil {
				return NewError(CodeStorageError, werr.Error())
			}
		}

		wentObsolete = e.transitionToDeletedOrObsoleteLocked(ver)
		if e.cfg.Part != nil {
			e.cfg.Part.NextUpdateCounter()
		}

		res = SetResult{Success: true, OldVal: oldVal, Ver: ver, Outcome: OutcomeSuccess}
		view = e.viewLocked()
		if e.cfg.CQ != nil {
			listenerSet, fireCQ = e.cfg.CQ.UpdateListeners(true, true)
		}
		return nil
	})
	if err != nil || !res.Success {
		return res, err
	}

	e.notifyAfterRemove(view, res, listenerSet, fireCQ, opts.RecordEvent)
	e.fireObsoleteIfNeeded(wentObsolete)

	if e.cfg.ExternalStore != nil {
		if rerr := e.cfg.ExternalStore.Remove(ctx, e.key); rerr != nil {
			return res, NewError(CodeStorageError, rerr.Error())
		}
	}
	return res, nil
}

// completeSetFuture resolves f with either err or result, matching
// GridFutureAdapter.onDone's single-outcome contract.
func completeSetFuture(f *future.Future[SetResult], result SetResult, err error) {
	if err != nil {
		f.OnDoneErr(err)
		return
	}
	f.OnDone(result)
}

func (e *Entry) notifyAfterPut(view EntryView, res SetResult, listenerSet ListenerSet, fireCQ bool, recordEvent bool) {
	if e.cfg.Interceptor != nil {
		e.cfg.Interceptor.OnAfterPut(view)
	}
	if fireCQ && e.cfg.CQ != nil {
		e.cfg.CQ.OnEntryUpdated(listenerSet, e.key, res.NewVal, res.OldVal, res.Ver)
	}
	e.recordEvent(recordEvent, EventPut, res.Ver, res.NewVal)
	if e.cfg.DR != nil {
		ttl, expireTime, _ := e.ext.TTL()
		_ = e.cfg.DR.Replicate(e.key, res.NewVal, ttl, expireTime, res.Ver, DRPut, res.Ver.TopologyVersion)
	}
}

func (e *Entry) notifyAfterRemove(view EntryView, res SetResult, listenerSet ListenerSet, fireCQ bool, recordEvent bool) {
	if e.cfg.Interceptor != nil {
		e.cfg.Interceptor.OnAfterRemove(view)
	}
	if fireCQ && e.cfg.CQ != nil {
		e.cfg.CQ.OnEntryUpdated(listenerSet, e.key, nil, res.OldVal, res.Ver)
	}
	e.recordEvent(recordEvent, EventRemoved, res.Ver, nil)
	if e.cfg.DR != nil {
		_ = e.cfg.DR.Replicate(e.key, nil, 0, 0, res.Ver, DRRemove, 0)
	}
}
