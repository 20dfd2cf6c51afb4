package httpqueue

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// Queue is the Request Queue of spec.md §4.2: the orchestrator that accepts
// submitted requests, routes them through the cache dispatcher and network
// dispatcher, and exposes cancellation. Construct with NewQueue and start
// workers with Start.
type Queue struct {
	cache Cache
	stack HTTPStack

	networkWorkers int
	executor       Executor
	logger         *slog.Logger
	eventListener  EventListener
	finishedListener FinishedListener
	circuitBreaker circuitbreaker.CircuitBreaker[*NetworkResponse]

	waiting *waitingRequestManager

	sequence atomic.Int64

	mu           sync.Mutex
	cacheQueue   *priorityQueue
	networkQueue *priorityQueue
	cacheCond    *sync.Cond
	networkCond  *sync.Cond
	tracked      map[*Request]struct{}

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewQueue constructs a Queue backed by cache (component B, nil disables
// cache-triage entirely) and stack (the HTTP transport).
// Defaults: 4 network workers, GoroutineExecutor, slog.Default().
func NewQueue(cache Cache, stack HTTPStack, opts ...QueueOption) *Queue {
	q := &Queue{
		cache:          cache,
		stack:          stack,
		networkWorkers: 4,
		executor:       GoroutineExecutor{},
		logger:         GetLogger(),
		waiting:        newWaitingRequestManager(),
		cacheQueue:     newPriorityQueue(),
		networkQueue:   newPriorityQueue(),
		tracked:        make(map[*Request]struct{}),
		stopCh:         make(chan struct{}),
	}
	q.cacheCond = sync.NewCond(&q.mu)
	q.networkCond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the cache dispatcher (one worker) and the network
// dispatcher (q.networkWorkers workers). Calling Start twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.runCacheDispatcher()

	for i := 0; i < q.networkWorkers; i++ {
		q.wg.Add(1)
		go q.runNetworkDispatcher()
	}
}

// Stop signals every dispatcher worker to exit once it finishes its current
// request, and blocks until they have. Queued-but-undispatched requests are
// left pending; call Add again against a fresh Queue if that matters, or
// CancelAll before Stop to abandon them explicitly.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.mu.Lock()
	q.cacheCond.Broadcast()
	q.networkCond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

// Add submits req for dispatch, assigning it a monotonically increasing
// sequence number and routing it to the cache dispatcher (if
// req.CachePolicy.ShouldCache, a Cache is configured and the method is GET
// or LegacyGetOrPost) or straight to the network dispatcher.
func (q *Queue) Add(req *Request) {
	req.sequence = q.sequence.Add(1)
	req.cacheKey = req.deriveCacheKey()
	req.setState(StatePending)

	q.mu.Lock()
	q.tracked[req] = struct{}{}
	if q.cache != nil && req.CachePolicy.ShouldCache && req.Method.cacheable() {
		q.cacheQueue.push(req)
		q.cacheCond.Signal()
	} else {
		q.networkQueue.push(req)
		q.networkCond.Signal()
	}
	q.mu.Unlock()

	q.emit(Event{Kind: EventQueued, Request: req})
}

// CancelAll cancels every currently tracked request whose Tag equals tag
// (via ==, for comparable tags). When match is non-nil it is used instead:
// every request for which match(req.Tag) reports true is canceled, and tag
// is ignored.
func (q *Queue) CancelAll(tag any, match func(any) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for req := range q.tracked {
		if match != nil {
			if match(req.Tag) {
				req.Cancel()
			}
			continue
		}
		if req.Tag == tag {
			req.Cancel()
		}
	}
}

func (q *Queue) untrack(req *Request) {
	q.mu.Lock()
	delete(q.tracked, req)
	q.mu.Unlock()
}

func (q *Queue) emit(e Event) {
	if q.eventListener != nil {
		q.eventListener.OnEvent(e)
	}
}

// finish runs a request's terminal delivery/error callback, notifies the
// finished listener, emits EventFinished, and stops tracking it. Every exit
// path from the pipeline funnels through here exactly once per request,
// guarded by req.finishedOnce.
func (q *Queue) finish(req *Request, state RequestState, result any, err error) {
	q.finishWithDelivery(req, state, result, err, true)
}

// finishWithDelivery is finish with control over whether the terminal
// Deliverer/ErrorListener callback actually runs. deliver=false still runs
// every other finishing step (state transition, EventFinished, the
// FinishedListener, untracking) but skips the callback itself; used by the
// network dispatcher's 304-after-soft-refresh path (spec.md §4.4 step 5) to
// avoid handing the same response to the caller twice.
func (q *Queue) finishWithDelivery(req *Request, state RequestState, result any, err error, deliver bool) {
	req.finishedOnce.Do(func() {
		req.setState(state)
		if deliver {
			deliverResult(q.executor, req, result, err, false)
		}
		q.emit(Event{Kind: EventFinished, Request: req, Err: err})
		if q.finishedListener != nil {
			q.finishedListener.OnFinished(req)
		}
		q.untrack(req)
	})
}

func now() int64 {
	return time.Now().UnixMilli()
}
