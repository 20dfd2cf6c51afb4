package httpqueue

import "testing"

func TestTryAddFollowerFirstRequestBecomesLeader(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)

	if isFollower := m.tryAddFollower("key", leader); isFollower {
		t.Fatalf("first registrant should become leader, not a follower")
	}
	if !m.isLeader("key", leader) {
		t.Fatalf("leader should be recorded as leader")
	}
}

func TestTryAddFollowerQueuesBehindLeader(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	follower := NewRequest(Get, "http://example.com", nil)

	m.tryAddFollower("key", leader)
	if isFollower := m.tryAddFollower("key", follower); !isFollower {
		t.Fatalf("second registrant should be queued as a follower")
	}
	if m.isLeader("key", follower) {
		t.Fatalf("follower must not be recorded as leader")
	}
}

func TestReleaseReturnsFollowersAndClearsState(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	f1 := NewRequest(Get, "http://example.com", nil)
	f2 := NewRequest(Get, "http://example.com", nil)

	m.tryAddFollower("key", leader)
	m.tryAddFollower("key", f1)
	m.tryAddFollower("key", f2)

	followers := m.release("key")
	if len(followers) != 2 || followers[0] != f1 || followers[1] != f2 {
		t.Fatalf("release = %v, want [f1, f2]", followers)
	}
	if followers2 := m.release("key"); followers2 != nil {
		t.Fatalf("release on an already-cleared key should return nil, got %v", followers2)
	}
}

func TestReleaseWithNoFollowersReturnsNil(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	m.tryAddFollower("key", leader)

	if followers := m.release("key"); followers != nil {
		t.Fatalf("release with a sole leader should return nil, got %v", followers)
	}
}

func TestPromoteIfLeaderCanceledPromotesNextNonCanceledFollower(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	canceledFollower := NewRequest(Get, "http://example.com", nil)
	nextLeader := NewRequest(Get, "http://example.com", nil)

	m.tryAddFollower("key", leader)
	m.tryAddFollower("key", canceledFollower)
	m.tryAddFollower("key", nextLeader)

	leader.Cancel()
	canceledFollower.Cancel()

	newLeader, promoted := m.promoteIfLeaderCanceled("key")
	if !promoted {
		t.Fatalf("expected a promotion to have occurred")
	}
	if newLeader != nextLeader {
		t.Fatalf("promoted leader = %v, want nextLeader", newLeader)
	}
	if !m.isLeader("key", nextLeader) {
		t.Fatalf("nextLeader should now be recorded as leader")
	}
}

func TestPromoteIfLeaderCanceledNoOpWhenLeaderIsLive(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	m.tryAddFollower("key", leader)

	newLeader, promoted := m.promoteIfLeaderCanceled("key")
	if promoted {
		t.Fatalf("expected no promotion when the leader is not canceled")
	}
	if newLeader != leader {
		t.Fatalf("newLeader = %v, want unchanged leader", newLeader)
	}
}

func TestPromoteIfLeaderCanceledWithAllCanceledClearsKey(t *testing.T) {
	m := newWaitingRequestManager()
	leader := NewRequest(Get, "http://example.com", nil)
	m.tryAddFollower("key", leader)
	leader.Cancel()

	newLeader, promoted := m.promoteIfLeaderCanceled("key")
	if newLeader != nil {
		t.Fatalf("newLeader = %v, want nil when every registrant is canceled", newLeader)
	}
	if !promoted {
		t.Fatalf("expected promoted=true since the canceled leader was dropped")
	}

	if follower := NewRequest(Get, "http://example.com", nil); m.tryAddFollower("key", follower) {
		t.Fatalf("after the key is cleared, a new registrant should become leader, not a follower")
	}
}
