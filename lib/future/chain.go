package future

// Chain returns a new Future resolved by applying mapFn to this future's
// terminal result once it completes. If this future fails or is
// cancelled, the chained future fails/cancels the same way without
// invoking mapFn, matching GridFutureAdapter.ChainFuture.
func Chain[R, T any](f *Future[R], mapFn func(R) T) *Future[T] {
	return ChainOn(f, nil, mapFn)
}

// ChainOn is Chain with an optional Executor used to run mapFn.
func ChainOn[R, T any](f *Future[R], exec Executor, mapFn func(R) T) *Future[T] {
	chained := New[T]()

	f.ListenOn(exec, func(result R, err error) {
		switch {
		case err == Cancelled:
			chained.OnCancelled()
		case err != nil:
			chained.OnDoneErr(err)
		default:
			chained.OnDone(mapFn(result))
		}
	})

	return chained
}

// ChainErr is Chain for a mapping function that may itself fail.
func ChainErr[R, T any](f *Future[R], mapFn func(R) (T, error)) *Future[T] {
	chained := New[T]()

	f.Listen(func(result R, err error) {
		switch {
		case err == Cancelled:
			chained.OnCancelled()
		case err != nil:
			chained.OnDoneErr(err)
		default:
			mapped, mapErr := mapFn(result)
			if mapErr != nil {
				chained.OnDoneErr(mapErr)
				return
			}
			chained.OnDone(mapped)
		}
	})

	return chained
}
