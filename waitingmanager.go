package httpqueue

import "sync"

// waitingRequestManager coalesces concurrent requests for the same cache
// key into a single network fetch (spec.md §4.6). Unlike a blocking
// singleflight.Do, registration is non-blocking: tryAddFollower returns
// immediately, telling the caller whether it must itself become the leader
// (dispatch the network request) or has been queued as a follower who will
// receive the leader's result via release.
//
// Cancellation is cooperative: if the current leader is canceled before its
// fetch starts, the next waiting, non-canceled follower is promoted to
// leader in place, so a canceled leader never stalls its followers.
type waitingRequestManager struct {
	mu      sync.Mutex
	waiters map[string][]*Request // index 0 is the leader
}

func newWaitingRequestManager() *waitingRequestManager {
	return &waitingRequestManager{waiters: make(map[string][]*Request)}
}

// tryAddFollower registers req against cacheKey. It returns true if req was
// queued behind an existing, non-canceled leader; false if req itself is
// now the leader (recorded as such) and the caller must dispatch the fetch.
func (m *waitingRequestManager) tryAddFollower(cacheKey string, req *Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.waiters[cacheKey]
	for len(existing) > 0 && existing[0].IsCanceled() {
		existing = existing[1:]
	}
	if len(existing) == 0 {
		m.waiters[cacheKey] = []*Request{req}
		return false
	}
	m.waiters[cacheKey] = append(existing, req)
	return true
}

// promoteIfLeaderCanceled drops every canceled registrant at the head of
// cacheKey's waiter list and returns the new head (nil if none is left, in
// which case the key is removed); promoted reports whether anything was
// dropped. The network dispatcher calls it for a canceled leader popped off
// the network queue, so that cancellation doesn't strand the followers.
func (m *waitingRequestManager) promoteIfLeaderCanceled(cacheKey string) (newLeader *Request, promoted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiters := m.waiters[cacheKey]
	for len(waiters) > 0 && waiters[0].IsCanceled() {
		waiters = waiters[1:]
		promoted = true
	}
	m.waiters[cacheKey] = waiters
	if len(waiters) == 0 {
		delete(m.waiters, cacheKey)
		return nil, promoted
	}
	return waiters[0], promoted
}

// isLeader reports whether req is currently recorded as the leader for
// cacheKey.
func (m *waitingRequestManager) isLeader(cacheKey string, req *Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiters := m.waiters[cacheKey]
	return len(waiters) > 0 && waiters[0] == req
}

// release clears cacheKey's waiter list and returns the followers (every
// registrant after the leader), so the caller can fan the leader's outcome
// out to them.
func (m *waitingRequestManager) release(cacheKey string) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiters, ok := m.waiters[cacheKey]
	delete(m.waiters, cacheKey)
	if !ok || len(waiters) <= 1 {
		return nil
	}
	followers := make([]*Request, len(waiters)-1)
	copy(followers, waiters[1:])
	return followers
}
