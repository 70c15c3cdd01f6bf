// Package refresh implements the self-healing background loop (spec
// §4.5, §4.6), grounded on original_source/routing.py's
// RoutingTable.refresh/refresh_prefix/find_peer_in_prefix and the
// teacher's ping-then-evict style in
// skademlia/discovery/service.go's EvictLastSeenPeer.
package refresh

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/kadnode/kadnode/internal/peer"
	"github.com/kadnode/kadnode/internal/peerclient"
	"github.com/kadnode/kadnode/internal/routing"
	"github.com/kadnode/kadnode/internal/xlog"
	"github.com/rs/zerolog"
)

// MaxTries bounds how many hops the iterative walk takes per seed before
// moving on to the next one (spec §4.6).
const MaxTries = 3

// snapshotTimeout bounds how long the worker waits for a
// refresh_get_config reply, matching original_source/routing.py's
// refresh_queue.get(True, timeout=10).
const snapshotTimeout = 10 * time.Second

// Dialer constructs an outbound Client for a given address. Production
// code passes peerclient.New; tests substitute a factory returning
// gomock fakes.
type Dialer func(ip string, port int) peerclient.Client

// Worker runs one refresh cycle at a time on its own goroutine, talking
// to the Routing Manager only through its command channel (spec §5: the
// Refresh Worker operates on a deserialized copy of the table, never on
// the table itself).
type Worker struct {
	RoutingIn chan<- routing.Command
	Dial      Dialer
	OwnerCtx  string
	Interval  time.Duration

	rng *rand.Rand
}

// NewWorker constructs a Worker. interval is the idle sleep between
// cycles (spec §4.5 step 5); seed seeds the random BID generator used
// during repopulation (spec §4.5 step 4).
func NewWorker(routingIn chan<- routing.Command, dial Dialer, ownerCtx string, interval time.Duration, seed int64) *Worker {
	return &Worker{
		RoutingIn: routingIn,
		Dial:      dial,
		OwnerCtx:  ownerCtx,
		Interval:  interval,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Run executes refresh cycles until ctx is cancelled. Every failure
// within a cycle is logged; a failed snapshot request or rebuild ends
// that cycle early, and the next cycle starts after the usual interval —
// the worker is best-effort (spec §4.5, closing paragraph).
func (w *Worker) Run(ctx context.Context) {
	logger := xlog.With("refresh-worker")
	for {
		w.cycle(ctx, logger)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.Interval):
		}
	}
}

func (w *Worker) requestSnapshot(ctx context.Context) (routing.Snapshot, error) {
	reply := make(chan routing.Snapshot, 1)
	select {
	case w.RoutingIn <- routing.RefreshGetConfigCommand{Reply: reply}:
	case <-ctx.Done():
		return routing.Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-time.After(snapshotTimeout):
		return routing.Snapshot{}, context.DeadlineExceeded
	case <-ctx.Done():
		return routing.Snapshot{}, ctx.Err()
	}
}

func deserializedPing(peer.Peer) bool { return false }

// cycle runs one cleanup pass followed by one repopulation pass (spec
// §4.5 steps 1-4), each against its own fresh deserialized copy of the
// table so the repopulation pass sees the buckets cleanup just vacated.
func (w *Worker) cycle(ctx context.Context, logger zerolog.Logger) {
	snap, err := w.requestSnapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("snapshot request failed")
		return
	}
	table, err := routing.RebuildFrom(snap, deserializedPing)
	if err != nil {
		logger.Warn().Err(err).Msg("rebuild from snapshot failed")
		return
	}
	w.cleanup(ctx, logger, table)

	snap, err = w.requestSnapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("post-cleanup snapshot failed")
		return
	}
	table, err = routing.RebuildFrom(snap, deserializedPing)
	if err != nil {
		logger.Warn().Err(err).Msg("post-cleanup rebuild failed")
		return
	}
	w.repopulate(ctx, logger, table)
}

// cleanup pings every peer in the deserialized copy and asks the
// Routing Manager to drop the dead ones (spec §4.5 steps 1-2).
func (w *Worker) cleanup(ctx context.Context, logger zerolog.Logger, table *routing.Table) {
	for _, p := range table.AllPeers() {
		client := w.Dial(p.IP, p.Port)
		if client.Ping(ctx) {
			continue
		}

		prefix, ok := table.PrefixOf(p.BID)
		if !ok {
			continue
		}

		select {
		case w.RoutingIn <- routing.RefreshRemoveCommand{Prefix: prefix, BID: p.BID}:
			logger.Debug().Str("bid", p.BID).Msg("evicted dead peer")
		case <-ctx.Done():
			return
		}
	}
}

// repopulate looks for a peer to fill each empty bucket by walking the
// network toward a random BID in that bucket's prefix (spec §4.5 steps
// 3-4, §4.6).
func (w *Worker) repopulate(ctx context.Context, logger zerolog.Logger, table *routing.Table) {
	empties := table.EmptyPrefixes()
	if len(empties) == 0 {
		return
	}

	seeds := table.AllPeers()
	if len(seeds) == 0 {
		return
	}

	for _, prefix := range empties {
		target := w.randomBIDWithPrefix(prefix, table.Depth)
		ordered := nearestFirst(seeds, target, table.Depth)

		found, ok := w.walk(ctx, target, prefix, ordered, table.Depth)
		if !ok {
			continue
		}

		select {
		case w.RoutingIn <- routing.AddCommand{Peer: found}:
			logger.Debug().Str("bid", found.BID).Str("prefix", prefix).Msg("repopulated bucket")
		case <-ctx.Done():
			return
		}
	}
}

// randomBIDWithPrefix produces a depth-length BID starting with prefix
// and random bits afterward (spec §4.5 step 4: "a random BID in the
// empty bucket's range").
func (w *Worker) randomBIDWithPrefix(prefix string, depth int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := len(prefix); i < depth; i++ {
		if w.rng.Intn(2) == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

// nearestFirst sorts seeds by XOR distance to target, ascending, so the
// walk starts from the most promising entry point.
func nearestFirst(seeds []peer.Peer, target string, depth int) []peer.Peer {
	ordered := make([]peer.Peer, len(seeds))
	copy(ordered, seeds)
	sort.Slice(ordered, func(i, j int) bool {
		return peer.Xor(ordered[i].BID, target, depth).Cmp(peer.Xor(ordered[j].BID, target, depth)) < 0
	})
	return ordered
}

// walk implements spec §4.6's iterative find-node walk: starting from
// each seed in turn, it hops through find_node replies up to MaxTries
// times, never revisiting a KID within the same call (testable property
// 6: "the iterative walk visits each KID at most once per call"). It
// returns the first peer encountered whose BID falls under prefix, or
// (_, false) if no seed's walk reaches one.
func (w *Worker) walk(ctx context.Context, target, prefix string, seeds []peer.Peer, depth int) (peer.Peer, bool) {
	visited := make(map[string]bool)

	for _, seed := range seeds {
		if strings.HasPrefix(seed.BID, prefix) {
			return seed, true
		}

		current := seed
		for try := 0; try < MaxTries; try++ {
			if visited[current.BID] {
				break
			}
			visited[current.BID] = true

			client := w.Dial(current.IP, current.Port)
			nextCtx, timedOut, err := client.FindNode(ctx, target, w.OwnerCtx)
			if err != nil || timedOut || nextCtx == "" {
				break
			}

			next, err := peer.ParseContext(nextCtx)
			if err != nil {
				break
			}
			next.BID = peer.PadBID(next.BID, depth)

			if strings.HasPrefix(next.BID, prefix) {
				return next, true
			}
			current = next
		}
	}

	return peer.Peer{}, false
}
