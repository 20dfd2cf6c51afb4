package httpqueue

import (
	"context"
)

// runNetworkDispatcher is one worker of the network dispatcher's bounded
// pool (component F, spec.md §4.4). Start launches q.networkWorkers of
// these concurrently.
func (q *Queue) runNetworkDispatcher() {
	defer q.wg.Done()
	for {
		req := q.popNetworkQueue()
		if req == nil {
			return
		}
		q.processNetworkRequest(req)
	}
}

func (q *Queue) popNetworkQueue() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.networkQueue.len() == 0 {
		select {
		case <-q.stopCh:
			return nil
		default:
		}
		q.networkCond.Wait()
		select {
		case <-q.stopCh:
			return nil
		default:
		}
	}
	return q.networkQueue.pop()
}

// processNetworkRequest implements spec.md §4.4 and §4.6: every request
// reaching the network queue has already been registered with the
// Waiting-Request Manager by the cache dispatcher (cachedispatcher.go's
// dispatchOrCoalesce) and is therefore always the leader for its cache key.
// It attaches conditional validators from a stale cache hit, runs the retry
// loop against the HTTP stack, classifies the outcome, writes through to
// the cache on success, and fans the result out to any followers that
// coalesced onto this fetch.
func (q *Queue) processNetworkRequest(req *Request) {
	if req.IsCanceled() {
		q.handOffCanceledLeader(req)
		q.finish(req, StateCanceled, nil, nil)
		return
	}

	result, entry, err, notModified := q.fetchAndParse(req)
	_ = entry

	if req.Method.cacheable() && q.cache != nil && req.CachePolicy.ShouldCache {
		for _, follower := range q.waiting.release(req.cacheKey) {
			q.finishWithDelivery(follower, terminalState(err), result, err, !suppressDuplicateDelivery(follower, err, notModified))
		}
	}

	q.finishWithDelivery(req, terminalState(err), result, err, !suppressDuplicateDelivery(req, err, notModified))
}

// suppressDuplicateDelivery reports whether a terminal delivery should be
// skipped because it would duplicate a response the recipient already
// received. Per spec.md §4.4 step 5, a 304 that confirms a soft-refreshed
// request's already-delivered stale data is still current must not trigger
// a second delivery of the same bytes; the request still finishes (events
// fire, the FinishedListener still runs) but its Deliverer is not called
// again.
func suppressDuplicateDelivery(req *Request, err error, notModified bool) bool {
	return err == nil && notModified && req.hasDeliveredResponse()
}

// handOffCanceledLeader runs when a request that may be registered as a
// waitingRequestManager leader turns out to be canceled before its fetch
// ever started (it was popped off the network queue but never dispatched,
// since nothing else drives a waiting follower forward). Without this, its
// followers would wait forever for a release that never comes. Promote the
// next non-canceled follower and give it a turn on the network queue.
func (q *Queue) handOffCanceledLeader(req *Request) {
	if !(req.Method.cacheable() && q.cache != nil && req.CachePolicy.ShouldCache) {
		return
	}
	newLeader, _ := q.waiting.promoteIfLeaderCanceled(req.cacheKey)
	if newLeader == nil || newLeader == req {
		return
	}
	q.mu.Lock()
	q.networkQueue.push(newLeader)
	q.networkCond.Signal()
	q.mu.Unlock()
}

func terminalState(err error) RequestState {
	if err != nil {
		return StateFailed
	}
	return StateDelivered
}

// fetchAndParse drives req through the retry loop to a terminal result or
// error. It is the only place that calls the HTTPStack. The final bool
// return reports whether the terminal outcome was a 304 merge (see
// handleResponse), so the caller can tell a genuinely new response apart
// from one confirming already-delivered stale data is unchanged.
func (q *Queue) fetchAndParse(req *Request) (any, *CacheEntry, error, bool) {
	req.setState(StateNetworkInflight)
	q.emit(Event{Kind: EventNetworkDispatchStarted, Request: req})
	defer q.emit(Event{Kind: EventNetworkDispatchFinished, Request: req})

	for {
		if req.IsCanceled() {
			return nil, nil, nil, false
		}

		nreq, buildErr := q.buildNetworkRequest(req)
		if buildErr != nil {
			return nil, nil, buildErr, false
		}

		q.emit(Event{Kind: EventNetworkAttemptStarted, Request: req})
		resp, err := q.execute(req, nreq)
		q.emit(Event{Kind: EventNetworkAttemptFinished, Request: req, Err: err})

		if err != nil {
			reqErr := classifyTransportError(err)
			if req.Parser != nil {
				reqErr = req.Parser.ParseNetworkError(reqErr)
			}
			if q.shouldRetry(req, reqErr) {
				continue
			}
			return nil, nil, reqErr, false
		}

		result, entry, retryErr, done, notModified := q.handleResponse(req, resp)
		if !done {
			if q.shouldRetry(req, retryErr) {
				continue
			}
			return nil, nil, retryErr, false
		}
		return result, entry, nil, notModified
	}
}

func (q *Queue) execute(req *Request, nreq *NetworkRequest) (*NetworkResponse, error) {
	ctx := context.Background()
	if q.circuitBreaker != nil {
		return ResilientStack{Stack: q.stack, CircuitBreaker: q.circuitBreaker}.Execute(ctx, nreq)
	}
	return q.stack.Execute(ctx, nreq)
}

// shouldRetry consults req's RetryPolicy, honoring the per-error-kind
// retriability rules of spec.md §7 and the opt-in flags of spec.md §4.4.
func (q *Queue) shouldRetry(req *Request, err RequestError) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *NoConnectionError:
		if !req.ShouldRetryConnectionErrors {
			return false
		}
	case *ServerError:
		if !req.CachePolicy.ShouldRetryServerErrors {
			return false
		}
	default:
		if !e.retriable() {
			return false
		}
	}
	return req.RetryPolicy.Retry(err) == nil
}

// buildNetworkRequest resolves headers/body and attaches conditional
// validators (If-None-Match / If-Modified-Since) from a stale cache hit.
func (q *Queue) buildNetworkRequest(req *Request) (*NetworkRequest, error) {
	headers, err := req.headers()
	if err != nil {
		return nil, NewAuthFailureError(nil, err)
	}
	if headers == nil {
		headers = make(map[string]string)
	}

	if entry := req.attachedEntry(); entry != nil {
		if entry.ETag != "" {
			headers["If-None-Match"] = entry.ETag
		}
		if entry.LastModified != 0 {
			headers["If-Modified-Since"] = formatHTTPDate(entry.LastModified)
		}
	}

	body, err := req.body()
	if err != nil {
		return nil, NewNetworkError(err)
	}
	if body != nil {
		headers["Content-Type"] = req.contentType("UTF-8")
	}

	return &NetworkRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: headers,
		Body:    body,
		Timeout: req.RetryPolicy.CurrentTimeout(),
	}, nil
}

// handleResponse classifies a completed HTTP round trip per spec.md §4.4
// step 5: 304 merges the cached entry's body/headers into a synthetic 200,
// 2xx parses and write-throughs to the cache, 4xx/5xx become typed errors.
// done=false with a non-nil retryErr means the caller's retry loop should
// evaluate whether to retry. notModified is true only for the 304 path, so
// the caller can recognize a "data unchanged" outcome and, per spec.md §4.4
// step 5, suppress a duplicate delivery when the stale data was already
// handed to the caller as an intermediate response.
func (q *Queue) handleResponse(req *Request, resp *NetworkResponse) (result any, entry *CacheEntry, retryErr RequestError, done bool, notModified bool) {
	switch {
	case resp.StatusCode == 304:
		cached := req.attachedEntry()
		if cached == nil {
			return nil, nil, NewServerError(resp), false, false
		}
		merged := &NetworkResponse{
			StatusCode: 200,
			Headers:    mergeNotModified(resp.Headers, cached.ResponseHeaders),
			Body:       cached.Data,
		}
		result, entry, err := q.parseAndCache(req, merged)
		if err != nil {
			return nil, nil, NewParseError(resp, err), false, false
		}
		return result, entry, nil, true, true

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result, entry, err := q.parseAndCache(req, resp)
		if err != nil {
			return nil, nil, NewParseError(resp, err), false, false
		}
		return result, entry, nil, true, false

	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return nil, nil, NewAuthFailureError(resp, nil), false, false

	case resp.StatusCode >= 500:
		return nil, nil, NewServerError(resp), false, false

	default:
		return nil, nil, NewClientError(resp), false, false
	}
}

// parseAndCache runs the request's ResponseParser and, if it returns a
// CacheEntry and the request allows caching, writes through to the cache.
func (q *Queue) parseAndCache(req *Request, resp *NetworkResponse) (any, *CacheEntry, error) {
	if req.Parser == nil {
		if q.cache != nil && req.CachePolicy.ShouldCache && req.Method.cacheable() {
			if entry, cacheable := buildCacheEntry(resp.Headers, resp.Body, now()); cacheable {
				_ = q.cache.Put(req.cacheKey, entry)
				return resp.Body, entry, nil
			}
		}
		return resp.Body, nil, nil
	}

	result, entry, err := req.Parser.ParseNetworkResponse(resp)
	if err != nil {
		return nil, nil, err
	}
	if entry != nil && q.cache != nil && req.CachePolicy.ShouldCache && req.Method.cacheable() {
		_ = q.cache.Put(req.cacheKey, entry)
	}
	return result, entry, nil
}

// classifyTransportError wraps an error returned by an HTTPStack that
// wasn't already a RequestError (a custom stack implementation, say) into
// NetworkError, so the rest of the pipeline always sees the RequestError
// interface.
func classifyTransportError(err error) RequestError {
	if reqErr, ok := err.(RequestError); ok {
		return reqErr
	}
	return NewNetworkError(err)
}
