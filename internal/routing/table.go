package routing

import (
	"encoding/json"
	"sort"

	"github.com/kadnode/kadnode/internal/peer"
	"github.com/pkg/errors"
)

// ErrSelfPeer is returned whenever an operation would place the owner's
// own BID into its own table (spec invariant 3).
var ErrSelfPeer = errors.New("routing: refusing to add self to routing table")

// Table is the prefix-partitioned routing table described in spec §3. It
// is not safe for concurrent mutation from multiple goroutines on its
// own — the single-writer invariant (spec §5) is enforced by Manager,
// which is the only intended caller of the mutating methods outside of
// tests.
type Table struct {
	SelfBID  string
	Depth    int
	K        int
	OwnerCtx string

	prefixes []string
	buckets  map[string]*Bucket
}

// New builds an empty table (all buckets present, none populated) owned
// by selfBID, per spec §3's "Routing Table" construction rule.
func New(selfBID string, depth, k int, ownerCtx string) *Table {
	selfBID = peer.PadBID(selfBID, depth)
	prefixes := peer.AllPrefixes(selfBID)

	buckets := make(map[string]*Bucket, len(prefixes))
	for _, p := range prefixes {
		buckets[p] = NewBucket()
	}

	return &Table{
		SelfBID:  selfBID,
		Depth:    depth,
		K:        k,
		OwnerCtx: ownerCtx,
		prefixes: prefixes,
		buckets:  buckets,
	}
}

// bucketFor returns the bucket and prefix owning bid, or ("", nil, false)
// if bid is the owner's own BID.
func (t *Table) bucketFor(bid string) (string, *Bucket, bool) {
	bid = peer.PadBID(bid, t.Depth)
	idx := peer.PrefixIndex(t.SelfBID, bid)
	if idx < 0 {
		return "", nil, false
	}
	prefix := peer.Prefix(t.SelfBID, idx)
	return prefix, t.buckets[prefix], true
}

// Add inserts p into the bucket matching its BID's longest prefix,
// applying the bucket insertion policy (spec §4.2). It refuses to store
// the owner's own BID (invariant 3). ping is used only if the target
// bucket is full.
func (t *Table) Add(p peer.Peer, ping PingFunc) (InsertResult, error) {
	p.BID = peer.PadBID(p.BID, t.Depth)

	_, bucket, ok := t.bucketFor(p.BID)
	if !ok {
		return Rejected, ErrSelfPeer
	}

	return bucket.Insert(t.K, p, ping), nil
}

// Remove deletes the peer with the given KID (BID) from the bucket keyed
// by prefix, reporting whether anything was removed.
func (t *Table) Remove(prefix, bid string) bool {
	bucket, ok := t.buckets[prefix]
	if !ok {
		return false
	}
	return bucket.Remove(peer.PadBID(bid, t.Depth))
}

// PrefixOf returns the bucket prefix that owns bid, for callers (such as
// the Refresh Worker) that need to address RefreshRemoveCommand at a
// specific bucket.
func (t *Table) PrefixOf(bid string) (string, bool) {
	prefix, _, ok := t.bucketFor(bid)
	return prefix, ok
}

// GetPeer looks up a peer anywhere in the table by BID.
func (t *Table) GetPeer(bid string) (peer.Peer, bool) {
	_, bucket, ok := t.bucketFor(bid)
	if !ok || bucket == nil {
		return peer.Peer{}, false
	}
	for _, p := range bucket.Peers() {
		if p.BID == peer.PadBID(bid, t.Depth) {
			return p, true
		}
	}
	return peer.Peer{}, false
}

// AllPeers flattens every bucket into a single slice (spec §4.3 step 1).
func (t *Table) AllPeers() []peer.Peer {
	var all []peer.Peer
	for _, prefix := range t.prefixes {
		all = append(all, t.buckets[prefix].Peers()...)
	}
	return all
}

// FindNearest implements spec §4.3: flatten, sort by XOR distance to q
// (ties broken by lower KID), return the head. Purely local — it never
// issues network I/O.
func (t *Table) FindNearest(q string) (peer.Peer, bool) {
	q = peer.PadBID(q, t.Depth)
	all := t.AllPeers()
	if len(all) == 0 {
		return peer.Peer{}, false
	}

	sort.Slice(all, func(i, j int) bool {
		di := peer.Xor(all[i].BID, q, t.Depth)
		dj := peer.Xor(all[j].BID, q, t.Depth)
		cmp := di.Cmp(dj)
		if cmp != 0 {
			return cmp < 0
		}
		ki, _ := peer.KID(all[i].BID)
		kj, _ := peer.KID(all[j].BID)
		return ki.Cmp(kj) < 0
	})

	return all[0], true
}

// EmptyPrefixes returns the prefixes whose bucket currently holds no
// peers (spec §4.5 step 3).
func (t *Table) EmptyPrefixes() []string {
	var empty []string
	for _, prefix := range t.prefixes {
		if t.buckets[prefix].Len() == 0 {
			empty = append(empty, prefix)
		}
	}
	return empty
}

// Snapshot is the structured serialization document from spec §4.4.
// encoding/json emits the struct fields in declaration order and the
// routing_table map keys in sorted order, which is what makes Scenario
// D's "byte-equivalent under canonical field ordering" requirement hold
// regardless of bucket insertion order.
type Snapshot struct {
	BID          string              `json:"bid"`
	Depth        int                 `json:"depth"`
	K            int                 `json:"k"`
	OwnerCtx     string              `json:"owner_peer_ctx"`
	RoutingTable map[string][]string `json:"routing_table"`
}

// Serialize produces a Snapshot of the current table state.
func (t *Table) Serialize() Snapshot {
	rt := make(map[string][]string, len(t.prefixes))
	for _, prefix := range t.prefixes {
		peers := t.buckets[prefix].Peers()
		ctxs := make([]string, 0, len(peers))
		for _, p := range peers {
			ctxs = append(ctxs, p.Context())
		}
		rt[prefix] = ctxs
	}

	return Snapshot{
		BID:          t.SelfBID,
		Depth:        t.Depth,
		K:            t.K,
		OwnerCtx:     t.OwnerCtx,
		RoutingTable: rt,
	}
}

// MarshalJSON serializes the table directly to its canonical JSON form.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Serialize())
}

// RebuildFrom reconstructs a table from a snapshot: builds an empty table
// with the same (bid, depth, k, owner_ctx) and replays Add for every peer
// context, in prefix-sorted, then insertion, order (spec §4.4). ping is
// used by the insertion policy in the rare case a replayed bucket is
// already at capacity; a snapshot taken from a well-formed Table never
// exceeds k per bucket, so ping is not expected to be invoked in
// practice, but a caller must still supply one.
func RebuildFrom(snap Snapshot, ping PingFunc) (*Table, error) {
	t := New(snap.BID, snap.Depth, snap.K, snap.OwnerCtx)

	prefixes := make([]string, 0, len(snap.RoutingTable))
	for prefix := range snap.RoutingTable {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		for _, ctx := range snap.RoutingTable[prefix] {
			p, err := peer.ParseContext(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "routing: rebuild")
			}
			if _, err := t.Add(p, ping); err != nil {
				return nil, errors.Wrap(err, "routing: rebuild")
			}
		}
	}

	return t, nil
}

// UnmarshalSnapshot parses a JSON document produced by MarshalJSON/
// Serialize back into a Snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "routing: malformed snapshot")
	}
	return snap, nil
}
