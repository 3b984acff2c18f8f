package videocall

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type peerTracker struct {
	clock clock.Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newPeerTracker(clock clock.Clock) *peerTracker {
	return &peerTracker{
		clock:    clock,
		lastSeen: map[string]time.Time{},
	}
}

// Seen records that peer was active just now.
func (t *peerTracker) Seen(peer string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[peer] = now
}

// Expire forgets peers silent longer than timeout. Returned slices are sorted.
func (t *peerTracker) Expire(timeout time.Duration) (alive, expired []string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for peer, seen := range t.lastSeen {
		if now.Sub(seen) > timeout {
			delete(t.lastSeen, peer)
			expired = append(expired, peer)
			continue
		}
		alive = append(alive, peer)
	}

	sort.Strings(alive)
	sort.Strings(expired)
	return alive, expired
}
