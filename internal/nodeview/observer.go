package nodeview

import (
	"context"

	"github.com/kadnode/kadnode/internal/xlog"
)

// EventKind identifies what an Event asks the Observer to do.
type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
	EventShow
)

// Event is the add/remove/show message sent by the Routing Manager
// (spec §4.7). BID is already zero-padded to the table's depth; it is
// ignored for EventShow.
type Event struct {
	Kind EventKind
	BID  string
}

// Observer consumes add/remove/show events and maintains a Universe trie
// that mirrors routing-table membership. It is a pure projection of the
// event stream: no back-reference to the routing table is needed (spec
// §9, "Observer is a passive projection").
type Observer struct {
	In       chan Event
	universe *Universe
}

// NewObserver returns an Observer for the given key-space depth. inBuffer
// sizes the inbound event channel (spec §5 names node_view_in as an
// "unbounded FIFO"; see Manager's NewManager doc comment for why a
// buffered channel is the idiomatic Go stand-in).
func NewObserver(depth, inBuffer int) *Observer {
	if inBuffer <= 0 {
		inBuffer = 256
	}
	return &Observer{
		In:       make(chan Event, inBuffer),
		universe: NewUniverse(depth),
	}
}

// Run consumes events until ctx is cancelled or In is closed.
func (o *Observer) Run(ctx context.Context) {
	logger := xlog.With("node-view")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.In:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventAdd:
				o.universe.Add(ev.BID)
				logger.Debug().Str("bid", ev.BID).Msg("add")
			case EventRemove:
				o.universe.Remove(ev.BID)
				logger.Debug().Str("bid", ev.BID).Msg("remove")
			case EventShow:
				logger.Info().Msg("\n" + o.universe.String())
			default:
				logger.Warn().Msgf("unknown event kind %v", ev.Kind)
			}
		}
	}
}

// Leaves exposes the current set of leaf BIDs. Intended for tests; the
// Observer is otherwise write-only from the rest of the system's point
// of view.
func (o *Observer) Leaves() []string {
	return o.universe.Leaves()
}
