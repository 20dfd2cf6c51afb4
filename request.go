package httpqueue

import (
	"sync"
	"sync/atomic"
)

// RequestState is the lifecycle stage of a Request, per spec.md §3.
type RequestState int32

const (
	StatePending RequestState = iota
	StateCacheTriage
	StateAwaitingLeader
	StateNetworkPending
	StateNetworkInflight
	StateParsing
	StateDelivered
	StateCanceled
	StateFailed
)

// HeaderProvider produces request headers lazily, once per attempt. It may
// return an AuthFailureError if credential attachment fails.
type HeaderProvider func() (map[string]string, error)

// BodyProvider produces a request body lazily, once per attempt.
type BodyProvider func() ([]byte, error)

// ResponseParser converts a NetworkResponse (or cached bytes replayed as one)
// into the caller's result type, and may customize error classification.
// This is the "response-strategy object" of spec.md §9.
type ResponseParser interface {
	// ParseNetworkResponse parses resp into a result value and, if the
	// response is cacheable, a CacheEntry to write through. Returning a nil
	// CacheEntry is valid (e.g. the strategy may decide a response is not
	// worth caching even though headers would permit it).
	ParseNetworkResponse(resp *NetworkResponse) (result any, entry *CacheEntry, err error)
	// ParseNetworkError allows a strategy to re-wrap a transport error
	// before it reaches the error listener.
	ParseNetworkError(err RequestError) RequestError
}

// Deliverer receives a successfully parsed result on the delivery context.
type Deliverer interface {
	DeliverResponse(result any, intermediate bool)
}

// ErrorListener receives a terminal error on the delivery context. It is
// never invoked for a canceled request.
type ErrorListener interface {
	OnErrorResponse(err error)
}

// Request is an immutable-after-submit value bundling everything needed to
// drive one request through the dispatch pipeline (spec.md §3). Construct
// with NewRequest and submit with Queue.Add.
type Request struct {
	Method          Method
	URL             string
	Headers         HeaderProvider
	Body            BodyProvider
	BodyContentType string
	CachePolicy     CachePolicy
	Priority        Priority
	RetryPolicy     *RetryPolicy

	// ShouldRetryConnectionErrors gates retrying NoConnectionError, per
	// spec.md §4.4 step 4.
	ShouldRetryConnectionErrors bool

	// Tag is an opaque cancellation scope. Requests sharing a Tag (compared
	// by == when comparable, or matched by a caller-supplied predicate) are
	// canceled together by Queue.CancelAll.
	Tag any

	Parser        ResponseParser
	Delivery      Deliverer
	ErrorListener ErrorListener

	sequence int64
	state    atomic.Int32

	canceled          atomic.Bool
	responseDelivered atomic.Bool // set once any response (intermediate or final) reaches the Deliverer

	cacheKey string

	mu           sync.Mutex
	cachedEntry  *CacheEntry // attached validators for conditional revalidation
	finishedOnce sync.Once
}

// NewRequest constructs a Request with spec.md §3's defaults: NORMAL
// priority, a fresh default RetryPolicy, and ShouldCache=true.
func NewRequest(method Method, url string, parser ResponseParser) *Request {
	return &Request{
		Method:      method,
		URL:         url,
		CachePolicy: DefaultCachePolicy(),
		Priority:    Normal,
		RetryPolicy: NewRetryPolicy(),
		Parser:      parser,
	}
}

// deriveCacheKey computes the cache key for the request per spec.md §3: for
// GET and the legacy dual-purpose method, the URL alone; for any other
// method, "METHOD-URL".
func (r *Request) deriveCacheKey() string {
	if r.Method.cacheable() {
		return r.URL
	}
	return r.Method.String() + "-" + r.URL
}

// State returns the request's current lifecycle stage.
func (r *Request) State() RequestState {
	return RequestState(r.state.Load())
}

func (r *Request) setState(s RequestState) {
	r.state.Store(int32(s))
}

// Cancel marks the request canceled. Safe to call from any goroutine, any
// number of times, at any point in the request's lifecycle. Once Cancel
// returns, IsCanceled observes true on every goroutine (spec.md §5).
func (r *Request) Cancel() {
	r.canceled.Store(true)
}

// IsCanceled reports whether Cancel has been called.
func (r *Request) IsCanceled() bool {
	return r.canceled.Load()
}

// markResponseDelivered records that a response has reached this request's
// Deliverer. Idempotent; safe to call after both an intermediate
// (soft-refresh) delivery and a final one.
func (r *Request) markResponseDelivered() {
	r.responseDelivered.Store(true)
}

// hasDeliveredResponse reports whether a response (intermediate or final)
// has already been handed to this request's Deliverer. The network
// dispatcher consults this on a 304 response to a soft-refresh fetch: per
// spec.md §4.4 step 5, if the stale cached data was already delivered as an
// intermediate response, a 304 confirms it is still current and must not
// trigger a second, duplicate delivery of the same bytes.
func (r *Request) hasDeliveredResponse() bool {
	return r.responseDelivered.Load()
}

// attachValidators stores a cache entry whose ETag/Last-Modified should be
// sent as conditional-request validators on the next network attempt
// (spec.md §4.3 step 5, §4.4 step 2).
func (r *Request) attachValidators(e *CacheEntry) {
	r.mu.Lock()
	r.cachedEntry = e
	r.mu.Unlock()
}

func (r *Request) attachedEntry() *CacheEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cachedEntry
}

// headers resolves the request's lazily-produced headers, defaulting to an
// empty map when no HeaderProvider was supplied.
func (r *Request) headers() (map[string]string, error) {
	if r.Headers == nil {
		return nil, nil
	}
	return r.Headers()
}

// body resolves the request's lazily-produced body. Its content type comes
// from contentType, which defaults per spec.md §3 to
// "application/x-www-form-urlencoded; charset=<params-encoding>".
func (r *Request) body() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return r.Body()
}

func (r *Request) contentType(paramsEncoding string) string {
	if r.BodyContentType != "" {
		return r.BodyContentType
	}
	return "application/x-www-form-urlencoded; charset=" + paramsEncoding
}
