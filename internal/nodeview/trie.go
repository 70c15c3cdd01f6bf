// Package nodeview implements the passive, eventually-consistent binary
// trie visualization described in spec §4.7, grounded on
// original_source/node.py's Universe/Node classes.
package nodeview

import (
	"strings"

	"github.com/kadnode/kadnode/internal/peer"
)

// trieNode is an interior or leaf node of the Universe. Interior nodes
// are labeled with the prefix they represent; leaves additionally carry
// the full padded BID they were added for.
type trieNode struct {
	label string
	left  *trieNode // bit '1'
	right *trieNode // bit '0'
	leaf  bool
	bid   string
}

// Universe is a binary trie of depth `depth` mirroring known peer BIDs,
// one root-to-leaf path per peer (spec §3, "Node-View Trie").
type Universe struct {
	depth int
	root  *trieNode
}

// NewUniverse returns an empty trie for the given key-space depth.
func NewUniverse(depth int) *Universe {
	return &Universe{depth: depth, root: &trieNode{label: "*"}}
}

// Add walks from the root, writing left on bit '1' and right on bit '0'
// of the zero-padded BID, creating missing interior nodes labeled by
// their prefix; the leaf carries the full padded BID (spec §4.7).
func (u *Universe) Add(bid string) {
	bid = peer.PadBID(bid, u.depth)

	node := u.root
	for i := 0; i < len(bid); i++ {
		if bid[i] == '1' {
			if node.left == nil {
				node.left = &trieNode{label: bid[:i+1]}
			}
			node = node.left
		} else {
			if node.right == nil {
				node.right = &trieNode{label: bid[:i+1]}
			}
			node = node.right
		}
	}
	node.leaf = true
	node.bid = bid
}

// leaves returns every leaf BID currently in the trie, in traversal
// order.
func (u *Universe) leaves() []string {
	var out []string
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n == nil {
			return
		}
		if n.leaf {
			out = append(out, n.bid)
		}
		walk(n.left)
		walk(n.right)
	}
	walk(u.root)
	return out
}

// Remove rebuilds the trie from scratch from the surviving leaves (spec
// §4.7: "acceptable: trie height equals depth, which is small").
func (u *Universe) Remove(bid string) {
	bid = peer.PadBID(bid, u.depth)

	var kept []string
	for _, l := range u.leaves() {
		if l != bid {
			kept = append(kept, l)
		}
	}

	u.root = &trieNode{label: "*"}
	for _, l := range kept {
		u.Add(l)
	}
}

// Leaves exposes the current leaf BIDs, used by tests and Scenario F.
func (u *Universe) Leaves() []string {
	return u.leaves()
}

// String renders the trie as indented text, for "show" (spec §4.7).
func (u *Universe) String() string {
	var b strings.Builder
	var walk func(n *trieNode, depth int)
	walk = func(n *trieNode, depth int) {
		if n == nil {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.label)
		if n.leaf {
			b.WriteString(" (leaf)")
		}
		b.WriteByte('\n')
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(u.root, 0)
	return b.String()
}
