package httpqueue

// Executor runs a finished request's terminal callback (delivery or error
// listener invocation). Swappable so callers can choose whether delivery
// happens on its own goroutine or synchronously inline, mirroring the
// teacher's asyncRevalidate goroutine-post idiom generalized into an
// interface instead of a single hardcoded "go func() {...}()".
type Executor interface {
	Execute(func())

	// ExecuteThen runs fn to completion and only then runs after, on
	// whatever goroutine(s) the Executor uses, implementing spec.md §4.6's
	// postResponse(request, response, runnable) operation: runnable (here,
	// a network re-enqueue) must be sequenced after the callback it
	// follows, per spec.md §4.3 step 8. Execute alone cannot express this,
	// since a GoroutineExecutor's Execute returns as soon as the callback
	// is scheduled, not once it has run.
	ExecuteThen(fn, after func())
}

// GoroutineExecutor runs each callback on its own goroutine. This is the
// Queue's default, matching spec.md §4.7's requirement that delivery never
// blocks a dispatcher worker.
type GoroutineExecutor struct{}

func (GoroutineExecutor) Execute(fn func()) { go fn() }

func (GoroutineExecutor) ExecuteThen(fn, after func()) {
	go func() {
		fn()
		after()
	}()
}

// SyncExecutor runs each callback inline, on the caller's goroutine. Useful
// in tests that need delivery to have happened by the time Queue.Add-ish
// calls return, and for embedding httpqueue in a program that already has
// its own dispatch loop (e.g. a GUI event loop) that must not be handed
// work from an arbitrary goroutine.
type SyncExecutor struct{}

func (SyncExecutor) Execute(fn func()) { fn() }

func (SyncExecutor) ExecuteThen(fn, after func()) {
	fn()
	after()
}

// deliverResult runs the terminal step for req: either its Deliverer (on
// success) or its ErrorListener (on failure), on the supplied Executor,
// unless req has been canceled. intermediate marks a soft-refresh delivery
// that a stale-while-revalidate network fetch may still follow up.
func deliverResult(exec Executor, req *Request, result any, err error, intermediate bool) {
	if req.IsCanceled() {
		return
	}
	exec.Execute(func() {
		deliverNow(req, result, err, intermediate)
	})
}

// deliverThenDispatch runs req's intermediate (soft-refresh) delivery and
// only then invokes dispatch, so the network re-enqueue that follows a
// stale-while-revalidate callback never races ahead of it (spec.md §4.3
// step 8, §4.6's postResponse). If req is already canceled, dispatch still
// runs: a canceled request's network fetch must still be driven to
// completion so any coalesced followers are released (spec.md §5).
func deliverThenDispatch(exec Executor, req *Request, result any, dispatch func()) {
	if req.IsCanceled() {
		dispatch()
		return
	}
	exec.ExecuteThen(func() {
		deliverNow(req, result, nil, true)
	}, dispatch)
}

func deliverNow(req *Request, result any, err error, intermediate bool) {
	if req.IsCanceled() {
		return
	}
	if err != nil {
		if req.ErrorListener != nil {
			req.ErrorListener.OnErrorResponse(err)
		}
		return
	}
	if req.Delivery != nil {
		req.Delivery.DeliverResponse(result, intermediate)
	}
	req.markResponseDelivered()
}
