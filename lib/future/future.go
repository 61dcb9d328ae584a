// Package future implements the single-assignment awaitable result used to
// coordinate asynchronous callers of the cache entry's update pipelines
// (spec.md §4.C). It is a direct Go translation of Apache Ignite's
// GridFutureAdapter: a lock-free stack of waiters (parked goroutines and
// listener callbacks) hanging off one atomically-swapped state slot,
// notified in LIFO order on completion.
package future

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Cancelled is returned by Get when the future was cancelled via
// OnCancelled instead of completed with a result or error.
var Cancelled = errors.New("future: cancelled")

// Timeout is returned by Get when the deadline elapses before the future
// completes.
var Timeout = errors.New("future: timeout")

// outcome is the terminal value a Future resolves to: a result, an error,
// or cancellation. Exactly one of err/cancelled is ever set alongside a
// meaningful result.
type outcome[R any] struct {
	result    R
	err       error
	cancelled bool
}

// waitNode is one entry in the LIFO waiter stack. A node is either a
// blocking waiter (ch non-nil, closed on completion) or a listener
// callback (cb non-nil, invoked on completion) — never both.
type waitNode[R any] struct {
	ch   chan struct{}
	cb   func(outcome[R])
	next *waitNode[R]
}

// slot is the Future's single mutable state: either a (possibly empty)
// stack of waiters awaiting a result, or a terminal outcome. Completion is
// a single CAS from a non-terminal slot to a terminal one.
type slot[R any] struct {
	terminal bool
	outcome  outcome[R]
	waiters  *waitNode[R]
}

// Future is a single-assignment awaitable result. The zero value is not
// usable; construct with New.
type Future[R any] struct {
	state atomic.Pointer[slot[R]]
}

// New returns a new, unresolved Future.
func New[R any]() *Future[R] {
	f := &Future[R]{}
	f.state.Store(&slot[R]{})
	return f
}

// Done returns a Future already resolved with result.
func Done[R any](result R) *Future[R] {
	f := New[R]()
	f.OnDone(result)
	return f
}

// Failed returns a Future already resolved with err.
func Failed[R any](err error) *Future[R] {
	f := New[R]()
	f.OnDoneErr(err)
	return f
}

// IsDone reports whether the future has reached a terminal state (result,
// error, or cancelled).
func (f *Future[R]) IsDone() bool {
	return f.state.Load().terminal
}

// IsCancelled reports whether the future's terminal state is cancellation.
func (f *Future[R]) IsCancelled() bool {
	s := f.state.Load()
	return s.terminal && s.outcome.cancelled
}

// OnDone transitions the future to a successful terminal state carrying
// result. Returns whether this call performed the transition; a future can
// only ever be completed once, so a second call (from any of OnDone,
// OnDoneErr or OnCancelled) always returns false and leaves the original
// terminal value intact.
func (f *Future[R]) OnDone(result R) bool {
	return f.complete(outcome[R]{result: result})
}

// OnDoneErr transitions the future to a failed terminal state carrying err.
// Same single-assignment contract as OnDone.
func (f *Future[R]) OnDoneErr(err error) bool {
	return f.complete(outcome[R]{err: err})
}

// OnCancelled transitions the future to the cancelled terminal state. Same
// single-assignment contract as OnDone.
func (f *Future[R]) OnCancelled() bool {
	return f.complete(outcome[R]{cancelled: true})
}

func (f *Future[R]) complete(o outcome[R]) bool {
	for {
		old := f.state.Load()
		if old.terminal {
			return false
		}
		next := &slot[R]{terminal: true, outcome: o}
		if f.state.CompareAndSwap(old, next) {
			f.unblockAll(old.waiters)
			return true
		}
	}
}

// unblockAll walks the waiter stack from head to tail, which is exactly
// LIFO registration order, waking blocked goroutines and invoking listener
// callbacks synchronously on the completer's goroutine.
func (f *Future[R]) unblockAll(n *waitNode[R]) {
	for n != nil {
		if n.ch != nil {
			close(n.ch)
		}
		if n.cb != nil {
			o := f.state.Load().outcome
			n.cb(o)
		}
		n = n.next
	}
}

// registerWaiter pushes node onto the waiter stack unless the future is
// already terminal, in which case it returns the terminal outcome
// immediately without registering anything.
func (f *Future[R]) registerWaiter(node *waitNode[R]) (outcome[R], bool) {
	for {
		old := f.state.Load()
		if old.terminal {
			return old.outcome, true
		}
		node.next = old.waiters
		next := &slot[R]{waiters: node}
		if f.state.CompareAndSwap(old, next) {
			return outcome[R]{}, false
		}
	}
}

// unregisterWaiter removes node from the waiter stack, used when Get times
// out or its context is cancelled before completion. A concurrent
// completion may race this and simply unblock everyone including stale
// nodes already unlinked here — harmless, per spec.md §4.C.
func (f *Future[R]) unregisterWaiter(node *waitNode[R]) {
	for {
		old := f.state.Load()
		if old.terminal {
			return
		}

		var newHead *waitNode[R]
		found := false
		// Rebuild the stack without node. Waiters are single-use so
		// identity comparison by pointer is sufficient.
		var chain []*waitNode[R]
		for n := old.waiters; n != nil; n = n.next {
			if n == node {
				found = true
				continue
			}
			chain = append(chain, n)
		}
		if !found {
			return
		}
		for i := len(chain) - 1; i >= 0; i-- {
			c := chain[i]
			c.next = newHead
			newHead = c
		}

		next := &slot[R]{waiters: newHead}
		if f.state.CompareAndSwap(old, next) {
			return
		}
	}
}

func resolve[R any](o outcome[R]) (R, error) {
	switch {
	case o.cancelled:
		var zero R
		return zero, Cancelled
	case o.err != nil:
		var zero R
		return zero, o.err
	default:
		return o.result, nil
	}
}

// Get blocks the calling goroutine until the future completes, returning
// its terminal result or raising its terminal error / Cancelled.
// Equivalent to GetContext(context.Background(), false).
func (f *Future[R]) Get() (R, error) {
	return f.GetContext(context.Background(), false)
}

// GetContext blocks until the future completes or ctx is done. If
// ignoreInterrupts is false, ctx cancellation aborts the wait immediately
// and ctx.Err() is returned. If ignoreInterrupts is true, ctx cancellation
// is deferred: the wait continues until the future actually completes, and
// the deferred ctx error is then re-raised alongside the (otherwise
// successful) result, matching spec.md §9's note that interrupts are
// "re-asserted on return" rather than collapsed into a no-op. A terminal
// error or cancellation from the future itself always takes precedence
// over a deferred ctx error.
func (f *Future[R]) GetContext(ctx context.Context, ignoreInterrupts bool) (R, error) {
	node := &waitNode[R]{ch: make(chan struct{})}
	if o, done := f.registerWaiter(node); done {
		return resolve(o)
	}

	var deferredErr error
	done := ctx.Done()

	for {
		select {
		case <-node.ch:
			o := f.state.Load().outcome
			result, err := resolve(o)
			if err == nil && deferredErr != nil {
				return result, deferredErr
			}
			return result, err
		case <-done:
			if ignoreInterrupts {
				deferredErr = ctx.Err()
				done = nil // stop watching ctx; wait for the future alone
				continue
			}
			f.unregisterWaiter(node)
			var zero R
			return zero, ctx.Err()
		}
	}
}

// GetWithTimeout blocks until the future completes or timeout elapses,
// returning Timeout in the latter case.
func (f *Future[R]) GetWithTimeout(timeout time.Duration) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := f.GetContext(ctx, false)
	if errors.Is(err, context.DeadlineExceeded) {
		return result, Timeout
	}
	return result, err
}

