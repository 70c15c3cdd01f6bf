package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadBID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0101", PadBID("101", 4))
	assert.Equal(t, "1010", PadBID("1010", 4))
}

func TestPrefixIndex(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		self, bid string
		expected  int
	}{
		{"0101", "1000", 0},
		{"0101", "0000", 1},
		{"0101", "0110", 2},
		{"0101", "0100", 3},
		{"0101", "0101", -1},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, PrefixIndex(tc.self, tc.bid), "self=%s bid=%s", tc.self, tc.bid)
	}
}

func TestAllPrefixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"1", "00", "011", "0100"}, AllPrefixes("0101"))
}

func TestXorOrdering(t *testing.T) {
	t.Parallel()

	// self_bid="0000", peers at KIDs {1, 8, 15}; query KID 9.
	// Distances: 1^9=8, 8^9=1, 15^9=6 -> nearest is KID 8.
	target := "1001"
	kids := []string{"0001", "1000", "1111"}

	best := kids[0]
	bestDist := Xor(best, target, 4)
	for _, k := range kids[1:] {
		d := Xor(k, target, 4)
		if d.Cmp(bestDist) < 0 {
			best = k
			bestDist = d
		}
	}
	assert.Equal(t, "1000", best)
}

func TestContextRoundtrip(t *testing.T) {
	t.Parallel()

	p := New("0101", "127.0.0.1", 4242)
	parsed, err := ParseContext(p.Context())
	assert.NoError(t, err)
	assert.Equal(t, p.BID, parsed.BID)
	assert.Equal(t, p.IP, parsed.IP)
	assert.Equal(t, p.Port, parsed.Port)
}

func TestParseContextMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseContext("not-a-context")
	assert.Error(t, err)
}

func TestEquals(t *testing.T) {
	t.Parallel()

	a := New("0101", "1.2.3.4", 1)
	b := New("0101", "5.6.7.8", 2)
	c := New("1111", "1.2.3.4", 1)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}
