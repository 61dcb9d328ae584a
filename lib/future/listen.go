package future

// Listen registers cb to be invoked once the future completes. If the
// future is already terminal, cb is invoked synchronously on the calling
// goroutine before Listen returns. Otherwise cb runs on whichever
// goroutine completes the future (OnDone/OnDoneErr/OnCancelled), unless an
// executor is supplied via ListenOn.
func (f *Future[R]) Listen(cb func(result R, err error)) {
	f.ListenOn(nil, cb)
}

// ListenOn is Listen with an optional executor used to run cb instead of
// the completer's goroutine. exec may be nil, in which case behavior is
// identical to Listen.
func (f *Future[R]) ListenOn(exec Executor, cb func(result R, err error)) {
	wrapped := func(o outcome[R]) {
		result, err := resolve(o)
		if exec != nil {
			exec.Execute(func() { cb(result, err) })
			return
		}
		cb(result, err)
	}

	node := &waitNode[R]{cb: wrapped}
	if o, done := f.registerWaiter(node); done {
		wrapped(o)
	}
}

// Executor runs a callback, optionally on a different goroutine/worker
// pool than the caller of Execute. A nil Executor means "run inline",
// matching GridFutureAdapter's listener dispatch, which defaults to the
// completer's thread absent an explicit executor.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute implements Executor.
func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// GoExecutor runs each callback on its own goroutine.
var GoExecutor Executor = ExecutorFunc(func(fn func()) { go fn() })
