// Package rpcserver is the inbound RPC front-end: it accepts TCP
// connections framed by internal/wire and dispatches each request to the
// Routing Manager or the Node-View Observer, grounded on
// original_source/worker.py's Kademlia RPC façade and the teacher's
// service-dispatch loop in protocol/node.go.
package rpcserver

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	"github.com/kadnode/kadnode/internal/nodeview"
	"github.com/kadnode/kadnode/internal/peer"
	"github.com/kadnode/kadnode/internal/routing"
	"github.com/kadnode/kadnode/internal/wire"
	"github.com/kadnode/kadnode/internal/xlog"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// pong is the literal reply to a ping RPC (spec §6: "ping() -> 'pong'").
const pong = "pong"

// added is the literal reply to an add RPC (spec §6: "add(args) -> 'added'").
const added = "added"

// Server accepts connections and dispatches requests to a single
// Manager/Observer pair. findNodeTimeout bounds how long it waits for
// the manager's find_node reply before answering with a timeout error
// (spec §5, "Cancellation and timeouts": refresh_interval × 2).
type Server struct {
	Listener        net.Listener
	RoutingIn       chan<- routing.Command
	NodeViewIn      chan<- nodeview.Event
	FindNodeTimeout time.Duration
}

// New binds a TCP listener on addr ("ip:port") and returns a Server
// ready to Serve.
func New(addr string, routingIn chan<- routing.Command, nodeViewIn chan<- nodeview.Event, findNodeTimeout time.Duration) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "rpcserver: listen")
	}
	return &Server{
		Listener:        ln,
		RoutingIn:       routingIn,
		NodeViewIn:      nodeViewIn,
		FindNodeTimeout: findNodeTimeout,
	}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Each connection handles exactly one request/response pair,
// matching the teacher's per-call connection style carried through from
// internal/peerclient.
func (s *Server) Serve(ctx context.Context) error {
	logger := xlog.With("rpc-server")

	go func() {
		<-ctx.Done()
		s.Listener.Close()
	}()

	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "rpcserver: accept")
			}
		}
		go s.handleConn(ctx, logger, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, logger zerolog.Logger, conn net.Conn) {
	defer conn.Close()

	payload, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		logger.Debug().Err(err).Msg("read request failed")
		return
	}

	req, err := wire.DecodeRequest(payload)
	if err != nil {
		logger.Debug().Err(err).Msg("decode request failed")
		return
	}

	resp := wire.Response{ID: req.ID}
	result, err := s.dispatch(ctx, req.Method, req.Arg)
	if err != nil {
		resp.Err = err.Error()
	} else {
		resp.Result = result
	}

	if err := wire.WriteFrame(conn, wire.EncodeResponse(resp)); err != nil {
		logger.Debug().Err(err).Msg("write response failed")
	}
}

// dispatch runs one RPC method against the Routing Manager / Node-View
// Observer and returns its string result (spec §6).
func (s *Server) dispatch(ctx context.Context, method, arg string) (string, error) {
	switch method {
	case wire.MethodPing:
		return pong, nil

	case wire.MethodFindNode:
		return s.dispatchFindNode(ctx, arg)

	case wire.MethodAdd:
		p, err := parseAddArgs(arg)
		if err != nil {
			return "", err
		}
		select {
		case s.RoutingIn <- routing.AddCommand{Peer: p}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return added, nil

	case wire.MethodShow:
		select {
		case s.RoutingIn <- routing.ShowCommand{}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "", nil

	case wire.MethodShowNodeView:
		select {
		case s.RoutingIn <- routing.ShowNodeViewCommand{}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "", nil

	default:
		return "", errors.Errorf("rpcserver: unknown method %q", method)
	}
}

// dispatchFindNode implements the find_node argument convention from
// spec §4.9: split on the literal "caller" token, record the caller via
// add_caller, then resolve the left half as a plain find_node query.
func (s *Server) dispatchFindNode(ctx context.Context, arg string) (string, error) {
	targetBID, callerCtx, hasCaller := splitCallerArg(arg)

	if hasCaller {
		caller, err := peer.ParseContext(callerCtx)
		if err != nil {
			return "", errors.Wrap(err, "rpcserver: malformed caller context")
		}
		select {
		case s.RoutingIn <- routing.AddCallerCommand{Peer: caller}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	reply := make(chan string, 1)
	select {
	case s.RoutingIn <- routing.FindNodeCommand{Target: targetBID, Reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case result := <-reply:
		return result, nil
	case <-time.After(s.FindNodeTimeout):
		return "", errors.New("rpcserver: find_node timed out")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// splitCallerArg splits "<target_bid> caller <bid> <ip> <port>" into its
// target and caller-context halves. hasCaller is false only for a plain
// "<target_bid>" argument with no " caller " token at all; in practice
// every find_node call on this wire format, including the Refresh
// Worker's walk, piggy-backs its own owner context as the caller.
func splitCallerArg(arg string) (targetBID, callerCtx string, hasCaller bool) {
	parts := strings.SplitN(arg, " caller ", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(arg), "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// parseAddArgs parses "<bid> <ip> <port>" for the add RPC.
func parseAddArgs(arg string) (peer.Peer, error) {
	p, err := peer.ParseContext(arg)
	if err != nil {
		return peer.Peer{}, errors.Wrap(err, "rpcserver: malformed add arguments")
	}
	return p, nil
}
