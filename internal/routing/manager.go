package routing

import (
	"context"

	"github.com/kadnode/kadnode/internal/nodeview"
	"github.com/kadnode/kadnode/internal/peer"
	"github.com/kadnode/kadnode/internal/xlog"
	"github.com/rs/zerolog"
)

// Command is the typed replacement for the teacher's string commands
// (original_source/routing.py's routing_thread_handler switches on
// "add"/"refresh_remove"/"find_node"/... parsed out of a queued string).
// Each variant carries its own payload and, where a reply is expected,
// its own one-shot reply channel — this is the per-call correlation the
// spec's Design Notes (§9) recommend in place of a single shared output
// queue that different callers' replies could cross on.
type Command interface {
	isCommand()
}

// AddCommand is "add <bid> <ip> <port>" (spec §4.1).
type AddCommand struct {
	Peer peer.Peer
}

// AddCallerCommand is "add_caller <bid> <ip> <port>": the same insertion
// as AddCommand, but originating from the caller identity piggy-backed on
// an inbound find_node RPC (spec §4.1, §4.9).
type AddCallerCommand struct {
	Peer peer.Peer
}

// FindNodeCommand is "find_node <bid>". Reply receives the serialized
// context of the locally-nearest peer, or peer.NoPeer.
type FindNodeCommand struct {
	Target string
	Reply  chan string
}

// RefreshRemoveCommand is "refresh_remove <prefix> <kid>".
type RefreshRemoveCommand struct {
	Prefix string
	BID    string
}

// RefreshGetConfigCommand is "refresh_get_config". Reply receives a
// Snapshot of the table as it stood when the command was processed.
type RefreshGetConfigCommand struct {
	Reply chan Snapshot
}

// ShowCommand is "show": log the table.
type ShowCommand struct{}

// ShowNodeViewCommand is "show_node_view": forward a show request to the
// Node-View Observer.
type ShowNodeViewCommand struct{}

func (AddCommand) isCommand()              {}
func (AddCallerCommand) isCommand()        {}
func (FindNodeCommand) isCommand()         {}
func (RefreshRemoveCommand) isCommand()    {}
func (RefreshGetConfigCommand) isCommand() {}
func (ShowCommand) isCommand()             {}
func (ShowNodeViewCommand) isCommand()     {}

// Manager is the single-owner actor for a Table (spec §4.1, §5). All
// mutation of routing state happens inside Run's goroutine; every other
// component talks to it exclusively through In.
type Manager struct {
	table *Table
	ping  PingFunc

	In     chan Command
	events chan<- nodeview.Event
}

// NewManager constructs a Manager around an existing Table. ping is used
// by the bucket insertion policy when a target bucket is full (spec
// §4.2); events is the outbound channel to the Node-View Observer (spec
// §4.7); inBuffer sizes the inbound command channel (an "unbounded FIFO"
// per spec §5 is approximated, as is conventional in Go, by a generously
// sized buffered channel rather than an actually unbounded queue).
func NewManager(table *Table, ping PingFunc, events chan<- nodeview.Event, inBuffer int) *Manager {
	if inBuffer <= 0 {
		inBuffer = 256
	}
	return &Manager{
		table:  table,
		ping:   ping,
		In:     make(chan Command, inBuffer),
		events: events,
	}
}

// Table returns the manager's table. Only safe to call from within Run's
// goroutine or by tests that are not racing a running Manager.
func (m *Manager) Table() *Table {
	return m.table
}

// Run processes commands from In until ctx is cancelled. It is the sole
// mutator of m.table (spec §5, "Single-writer invariant"). Besides
// waiting on In, the manager blocks only while the insertion policy pings
// the head of a full bucket; that ping runs on this goroutine and is
// bounded only by the timeout of the supplied PingFunc.
func (m *Manager) Run(ctx context.Context) {
	logger := xlog.With("routing-manager")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-m.In:
			if !ok {
				return
			}
			m.handle(logger, cmd)
		}
	}
}

func (m *Manager) emit(kind nodeview.EventKind, bid string) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- nodeview.Event{Kind: kind, BID: bid}:
	default:
		// Observer is eventually consistent and advisory (spec §4.7);
		// never let a slow observer apply backpressure to the manager.
	}
}

func (m *Manager) addPeer(logger zerolog.Logger, p peer.Peer) {
	result, err := m.table.Add(p, m.ping)
	if err != nil {
		logger.Debug().Err(err).Str("bid", p.BID).Msg("add rejected")
		return
	}
	if result == Admitted {
		m.emit(nodeview.EventAdd, peer.PadBID(p.BID, m.table.Depth))
	}
}

func (m *Manager) handle(logger zerolog.Logger, cmd Command) {
	switch c := cmd.(type) {
	case AddCommand:
		m.addPeer(logger, c.Peer)

	case AddCallerCommand:
		m.addPeer(logger, c.Peer)

	case FindNodeCommand:
		nearest, ok := m.table.FindNearest(c.Target)
		reply := peer.NoPeer
		if ok {
			reply = nearest.Context()
		}
		logger.Debug().Str("target", c.Target).Str("nearest", reply).Msg("find_node")
		c.Reply <- reply

	case RefreshRemoveCommand:
		if m.table.Remove(c.Prefix, c.BID) {
			m.emit(nodeview.EventRemove, peer.PadBID(c.BID, m.table.Depth))
		}

	case RefreshGetConfigCommand:
		c.Reply <- m.table.Serialize()

	case ShowCommand:
		logger.Info().Str("table", mustJSON(m.table)).Msg("routing table")

	case ShowNodeViewCommand:
		m.emit(nodeview.EventShow, "")

	default:
		logger.Warn().Msgf("unknown command %T", cmd)
	}
}

func mustJSON(t *Table) string {
	data, err := t.MarshalJSON()
	if err != nil {
		return "<unserializable>"
	}
	return string(data)
}
