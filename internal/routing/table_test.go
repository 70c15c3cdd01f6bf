package routing

import (
	"testing"

	"github.com/kadnode/kadnode/internal/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysAlive(peer.Peer) bool { return true }
func alwaysDead(peer.Peer) bool  { return false }

// Scenario A — placement.
func TestScenarioA_Placement(t *testing.T) {
	t.Parallel()

	table := New("0101", 4, 2, "0101 0.0.0.0 1")

	for _, bid := range []string{"1000", "0000", "0110", "0100"} {
		_, err := table.Add(peer.New(bid, "127.0.0.1", 1), alwaysAlive)
		require.NoError(t, err)
	}

	expect := map[string][]string{
		"1":    {"1000"},
		"00":   {"0000"},
		"011":  {"0110"},
		"0100": {"0100"},
	}
	snap := table.Serialize()
	for prefix, bids := range expect {
		var got []string
		for _, ctx := range snap.RoutingTable[prefix] {
			p, err := peer.ParseContext(ctx)
			require.NoError(t, err)
			got = append(got, p.BID)
		}
		assert.Equal(t, bids, got, "prefix %s", prefix)
	}
}

// Scenario B — eviction.
func TestScenarioB_Eviction(t *testing.T) {
	t.Parallel()

	table := New("0000", 4, 1, "0000 0.0.0.0 1")

	res, err := table.Add(peer.New("1000", "1.1.1.1", 1), alwaysAlive)
	require.NoError(t, err)
	assert.Equal(t, Admitted, res)

	// Bucket "1" is now full; inserting 1111 pings the head (1000) which
	// is alive, so 1111 is dropped and 1000 stays.
	res, err = table.Add(peer.New("1111", "2.2.2.2", 1), alwaysAlive)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res)

	p, ok := table.GetPeer("1000")
	require.True(t, ok)
	assert.Equal(t, "1000", p.BID)

	// Now the head fails its ping, so the newcomer is admitted instead.
	res, err = table.Add(peer.New("1111", "2.2.2.2", 1), alwaysDead)
	require.NoError(t, err)
	assert.Equal(t, Admitted, res)

	_, ok = table.GetPeer("1000")
	assert.False(t, ok)
	p, ok = table.GetPeer("1111")
	require.True(t, ok)
	assert.Equal(t, "1111", p.BID)
}

// Scenario C — nearest.
func TestScenarioC_Nearest(t *testing.T) {
	t.Parallel()

	table := New("0000", 4, 4, "0000 0.0.0.0 1")
	for _, bid := range []string{"0001", "1000", "1111"} {
		_, err := table.Add(peer.New(bid, "127.0.0.1", 1), alwaysAlive)
		require.NoError(t, err)
	}

	nearest, ok := table.FindNearest("1001")
	require.True(t, ok)
	assert.Equal(t, "1000", nearest.BID)
}

// Scenario D — roundtrip.
func TestScenarioD_Roundtrip(t *testing.T) {
	t.Parallel()

	table := New("0101", 4, 4, "0101 0.0.0.0 1")
	for _, bid := range []string{"1000", "0000", "0110"} {
		_, err := table.Add(peer.New(bid, "127.0.0.1", 1), alwaysAlive)
		require.NoError(t, err)
	}

	first, err := table.MarshalJSON()
	require.NoError(t, err)

	snap, err := UnmarshalSnapshot(first)
	require.NoError(t, err)

	rebuilt, err := RebuildFrom(snap, alwaysAlive)
	require.NoError(t, err)

	second, err := rebuilt.MarshalJSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, string(first), string(second))
}

func TestDuplicateInsertionIsNoop(t *testing.T) {
	t.Parallel()

	table := New("0000", 4, 1, "0000 0.0.0.0 1")
	res, err := table.Add(peer.New("1000", "1.1.1.1", 1), alwaysAlive)
	require.NoError(t, err)
	assert.Equal(t, Admitted, res)

	res, err = table.Add(peer.New("1000", "9.9.9.9", 9), alwaysAlive)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)

	p, ok := table.GetPeer("1000")
	require.True(t, ok)
	assert.Equal(t, "1.1.1.1", p.IP, "duplicate insert must not overwrite the existing entry")
}

func TestSelfNeverStored(t *testing.T) {
	t.Parallel()

	table := New("0101", 4, 4, "0101 0.0.0.0 1")
	_, err := table.Add(peer.New("0101", "127.0.0.1", 1), alwaysAlive)
	assert.ErrorIs(t, err, ErrSelfPeer)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	table := New("0000", 4, 4, "0000 0.0.0.0 1")
	_, err := table.Add(peer.New("1000", "127.0.0.1", 1), alwaysAlive)
	require.NoError(t, err)

	assert.True(t, table.Remove("1", "1000"))
	_, ok := table.GetPeer("1000")
	assert.False(t, ok)
}

func TestEmptyPrefixes(t *testing.T) {
	t.Parallel()

	table := New("0000", 4, 1, "0000 0.0.0.0 1")
	_, err := table.Add(peer.New("1000", "127.0.0.1", 1), alwaysAlive)
	require.NoError(t, err)

	empty := table.EmptyPrefixes()
	assert.NotContains(t, empty, "1")
	assert.Contains(t, empty, "01")
}
