package routing

import (
	"container/list"
	"sync"

	"github.com/kadnode/kadnode/internal/peer"
)

// PingFunc pings a peer with a bounded timeout and reports liveness. It is
// supplied by the caller (the Routing Manager) so the bucket package has
// no knowledge of the transport.
type PingFunc func(peer.Peer) bool

// InsertResult reports what Bucket.Insert did, per spec §4.2.
type InsertResult int

const (
	// Admitted means the peer now occupies a slot in the bucket (either
	// because there was free capacity, or because the head was dead and
	// got evicted in its favor).
	Admitted InsertResult = iota
	// Rejected means the bucket was full, the head responded to a ping,
	// and the new peer was dropped.
	Rejected
	// Duplicate means a peer with this KID was already present; the
	// existing entry is left untouched. This is the fix called for in
	// spec §9 ("Open questions / possibly-buggy source behavior" —
	// duplicate insertion): the source K-bucket add does not check for
	// an existing KID.
	Duplicate
)

// Bucket is an ordered, size-bounded list of peers sharing a routing
// table prefix. The head (front) is the oldest entry and the eviction
// candidate; new peers are appended at the tail (spec §3, "K-Bucket").
type Bucket struct {
	mu   sync.RWMutex
	list *list.List
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{list: list.New()}
}

// Len returns the current peer count.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.Len()
}

// Peers returns a snapshot of the bucket's contents, oldest first.
func (b *Bucket) Peers() []peer.Peer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	peers := make([]peer.Peer, 0, b.list.Len())
	for e := b.list.Front(); e != nil; e = e.Next() {
		peers = append(peers, e.Value.(peer.Peer))
	}
	return peers
}

// find returns the list element holding the peer with the given BID, if
// any. Caller must hold at least a read lock.
func (b *Bucket) find(bid string) *list.Element {
	for e := b.list.Front(); e != nil; e = e.Next() {
		if e.Value.(peer.Peer).BID == bid {
			return e
		}
	}
	return nil
}

// Contains reports whether a peer with the given BID is present.
func (b *Bucket) Contains(bid string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.find(bid) != nil
}

// Remove deletes the peer with the given BID, if present, reporting
// whether anything was removed.
func (b *Bucket) Remove(bid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(bid)
	if e == nil {
		return false
	}
	b.list.Remove(e)
	return true
}

// Insert applies the bucket insertion policy from spec §4.2:
//
//  1. Reject outright if the KID is already present (§9 fix).
//  2. If there is spare capacity, append and report Admitted.
//  3. Otherwise remove the head, ping it with the given bounded-timeout
//     PingFunc; if it is alive, put it back at the tail and report
//     Rejected (the new peer is dropped); if it is dead, append the new
//     peer at the tail and report Admitted.
//
// The ping is performed without holding the bucket's lock so a slow or
// hung remote cannot block unrelated readers (spec §5, "Implementations
// may offload (a) to avoid head-of-line blocking").
func (b *Bucket) Insert(k int, p peer.Peer, ping PingFunc) InsertResult {
	b.mu.Lock()
	if b.find(p.BID) != nil {
		b.mu.Unlock()
		return Duplicate
	}

	if b.list.Len() < k {
		b.list.PushBack(p)
		b.mu.Unlock()
		return Admitted
	}

	head := b.list.Front()
	oldest := head.Value.(peer.Peer)
	b.list.Remove(head)
	b.mu.Unlock()

	if ping(oldest) {
		b.mu.Lock()
		b.list.PushBack(oldest)
		b.mu.Unlock()
		return Rejected
	}

	b.mu.Lock()
	b.list.PushBack(p)
	b.mu.Unlock()
	return Admitted
}
