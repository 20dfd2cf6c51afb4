package httpqueue

// runCacheDispatcher is the cache dispatcher (component E, spec.md §4.3): a
// single worker draining the cache queue so cache reads are serialized and
// never contend with the network workers' write-throughs.
func (q *Queue) runCacheDispatcher() {
	defer q.wg.Done()
	for {
		req := q.popCacheQueue()
		if req == nil {
			return // Stop was called and the queue drained
		}
		q.processCacheTriage(req)
	}
}

// popCacheQueue blocks until a request is available or Stop is called, in
// which case it returns nil.
func (q *Queue) popCacheQueue() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.cacheQueue.len() == 0 {
		select {
		case <-q.stopCh:
			return nil
		default:
		}
		q.cacheCond.Wait()
		select {
		case <-q.stopCh:
			return nil
		default:
		}
	}
	return q.cacheQueue.pop()
}

// processCacheTriage implements spec.md §4.3's cache-lookup algorithm: a
// cache hit that is still fresh is delivered and the request is finished
// here; a cache hit that only needs soft revalidation is delivered as an
// intermediate response and also forwarded to the network dispatcher; a
// cache miss (or hard-expired entry) is forwarded to the network
// dispatcher, with any stale entry's validators attached for a conditional
// request.
func (q *Queue) processCacheTriage(req *Request) {
	if req.IsCanceled() {
		q.finish(req, StateCanceled, nil, nil)
		return
	}

	req.setState(StateCacheTriage)
	q.emit(Event{Kind: EventCacheLookupStarted, Request: req})

	entry, ok := q.cache.Get(req.cacheKey)
	t := now()

	if !ok {
		q.emit(Event{Kind: EventCacheLookupFinished, Request: req, CacheHit: false})
		q.dispatchOrCoalesce(req)
		return
	}

	if entry.Expired(t) {
		req.attachValidators(entry)
		q.emit(Event{Kind: EventCacheLookupFinished, Request: req, CacheHit: false})
		q.dispatchOrCoalesce(req)
		return
	}

	q.emit(Event{Kind: EventCacheLookupFinished, Request: req, CacheHit: true})

	result, parseErr := q.parseCachedEntry(req, entry)
	if parseErr != nil {
		req.attachValidators(entry)
		q.dispatchOrCoalesce(req)
		return
	}

	if entry.RefreshNeeded(t) {
		req.attachValidators(entry)
		deliverThenDispatch(q.executor, req, result, func() { q.dispatchOrCoalesce(req) })
		return
	}

	q.finish(req, StateDelivered, result, nil)
}

// dispatchOrCoalesce registers req with the Waiting-Request Manager before
// it ever reaches the network queue (spec.md §4.3 step 4): if another
// request is already in flight for the same cache key, req is parked as a
// follower that will receive that fetch's outcome via waiting.release
// instead of being pushed onto the network queue itself. Only the leader
// (or a request whose cache policy opts out of caching) is dispatched.
// Doing this here, in the single-worker cache dispatcher, rather than in a
// network worker, is what guarantees at most one network fetch per cache
// key even when the network worker pool is saturated: with registration
// deferred to the network dispatcher, a second same-key miss could sit in
// the network queue until the leader's fetch has already released and
// cleared the waiting-manager entry, and would then wrongly become a
// second leader.
func (q *Queue) dispatchOrCoalesce(req *Request) {
	if req.Method.cacheable() && q.cache != nil && req.CachePolicy.ShouldCache {
		if q.waiting.tryAddFollower(req.cacheKey, req) {
			req.setState(StateAwaitingLeader)
			q.emit(Event{Kind: EventAwaitingLeader, Request: req})
			return
		}
	}
	q.dispatchToNetwork(req)
}

// parseCachedEntry replays a cache hit through the request's ResponseParser
// as if it were a fresh 200 response, so callers see one result shape
// regardless of whether it came from cache or network.
func (q *Queue) parseCachedEntry(req *Request, entry *CacheEntry) (any, error) {
	if req.Parser == nil {
		return entry.Data, nil
	}
	synthetic := &NetworkResponse{
		StatusCode: 200,
		Headers:    entry.ResponseHeaders,
		Body:       entry.Data,
	}
	result, _, err := req.Parser.ParseNetworkResponse(synthetic)
	return result, err
}

// dispatchToNetwork transitions req into the network queue.
func (q *Queue) dispatchToNetwork(req *Request) {
	req.setState(StateNetworkPending)
	q.mu.Lock()
	q.networkQueue.push(req)
	q.networkCond.Signal()
	q.mu.Unlock()
}
