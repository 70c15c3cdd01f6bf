// Package peer implements the BID/KID identifier arithmetic and the Peer
// value type shared by the routing table, the refresh worker, and the
// RPC layer.
//
// A BID is the canonical textual identifier: a string of '0'/'1'
// characters, left-padded with zeros to exactly Depth characters. A KID
// is its big-endian base-2 integer value. math/big is used instead of a
// machine word so Depth is never implicitly bounded to 64 bits, mirroring
// the teacher's choice of a byte-slice (not uint64) XOR representation.
package peer

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedPeerContext is returned when a wire-format peer context
// string ("<bid> <ip> <port>") cannot be parsed.
var ErrMalformedPeerContext = errors.New("peer: malformed peer context")

// PadBID left-pads bid with zeros to exactly depth characters. The spec
// defines the BID as already being canonical at this width; PadBID is
// used whenever an identifier arrives from the wire or from a CLI flag
// and might be shorter.
func PadBID(bid string, depth int) string {
	if len(bid) >= depth {
		return bid
	}
	return strings.Repeat("0", depth-len(bid)) + bid
}

// KID returns the big.Int value of a BID.
func KID(bid string) (*big.Int, error) {
	kid, ok := new(big.Int).SetString(bid, 2)
	if !ok {
		return nil, errors.Errorf("peer: invalid BID %q", bid)
	}
	return kid, nil
}

// Xor returns the XOR distance between two same-length BIDs as a big.Int.
func Xor(a, b string, depth int) *big.Int {
	ka, _ := KID(PadBID(a, depth))
	kb, _ := KID(PadBID(b, depth))
	return new(big.Int).Xor(ka, kb)
}

// PrefixIndex returns i such that prefix_i = self[0:i] + flip(self[i]) is
// the longest of self's depth prefixes that bid starts with. self and bid
// must both already be padded to depth. Returns -1 if bid equals self
// (the owner's own BID has no matching bucket, per invariant 3).
func PrefixIndex(self, bid string) int {
	n := len(self)
	if len(bid) != n {
		return -1
	}
	for i := 0; i < n; i++ {
		if bid[i] != self[i] {
			return i
		}
	}
	return -1
}

// Prefix returns prefix_i for the given self BID and index i.
func Prefix(self string, i int) string {
	flipped := byte('1')
	if self[i] == '1' {
		flipped = '0'
	}
	return self[:i] + string(flipped)
}

// AllPrefixes returns the depth distinct bucket-keying prefixes of self,
// in bucket-index order (prefix_0 .. prefix_{depth-1}).
func AllPrefixes(self string) []string {
	prefixes := make([]string, len(self))
	for i := range self {
		prefixes[i] = Prefix(self, i)
	}
	return prefixes
}

// Peer is the mutable record of a known remote node.
type Peer struct {
	BID  string
	IP   string
	Port int

	LastSeen time.Time

	// OwnerCtx is the serialized identity of the node that holds this
	// peer reference, carried on outbound RPCs so the callee can learn
	// about its caller (spec §3, "Peer").
	OwnerCtx string
}

// New constructs a peer with LastSeen set to now.
func New(bid, ip string, port int) Peer {
	return Peer{BID: bid, IP: ip, Port: port, LastSeen: time.Now()}
}

// KID returns the peer's identifier as an integer.
func (p Peer) KID() (*big.Int, error) {
	return KID(p.BID)
}

// Equals reports whether two peers have the same KID (spec §3: "Two
// peers are equal iff their KIDs match").
func (p Peer) Equals(other Peer) bool {
	a, errA := p.KID()
	b, errB := other.KID()
	if errA != nil || errB != nil {
		return p.BID == other.BID
	}
	return a.Cmp(b) == 0
}

// Context serializes the peer to the wire format "<bid> <ip> <port>".
func (p Peer) Context() string {
	return fmt.Sprintf("%s %s %d", p.BID, p.IP, p.Port)
}

// String implements fmt.Stringer as the wire context, matching the
// teacher's Peer.__str__ convention in original_source/peer.py.
func (p Peer) String() string {
	return p.Context()
}

// ParseContext parses a "<bid> <ip> <port>" triple into a Peer.
func ParseContext(ctx string) (Peer, error) {
	fields := strings.Fields(ctx)
	if len(fields) != 3 {
		return Peer{}, errors.Wrapf(ErrMalformedPeerContext, "got %q", ctx)
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		return Peer{}, errors.Wrapf(ErrMalformedPeerContext, "bad port in %q", ctx)
	}
	return Peer{BID: fields[0], IP: fields[1], Port: port, LastSeen: time.Now()}, nil
}

// NoPeer is the sentinel textual response for "no peer found" (spec §4.1,
// §6). It is distinct from any valid peer context.
const NoPeer = "None"
