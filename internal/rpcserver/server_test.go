package rpcserver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/kadnode/kadnode/internal/nodeview"
	"github.com/kadnode/kadnode/internal/peer"
	"github.com/kadnode/kadnode/internal/routing"
	"github.com/kadnode/kadnode/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysAlive(peer.Peer) bool { return true }

func startServer(t *testing.T) (*Server, *routing.Manager, *nodeview.Observer, context.CancelFunc) {
	t.Helper()

	table := routing.New("0000", 4, 4, "0000 127.0.0.1 9000")
	obs := nodeview.NewObserver(table.Depth, 16)
	mgr := routing.NewManager(table, alwaysAlive, obs.In, 16)

	srv, err := New("127.0.0.1:0", mgr.In, obs.In, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go obs.Run(ctx)
	go mgr.Run(ctx)
	go srv.Serve(ctx)

	return srv, mgr, obs, cancel
}

func call(t *testing.T, addr, method, arg string) wire.Response {
	t.Helper()

	conn, err := (&net.Dialer{}).DialContext(context.Background(), "tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteFrame(conn, wire.EncodeRequest(wire.Request{ID: 1, Method: method, Arg: arg})))

	payload, err := wire.ReadFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	resp, err := wire.DecodeResponse(payload)
	require.NoError(t, err)
	return resp
}

func TestPingRPC(t *testing.T) {
	t.Parallel()

	srv, _, _, cancel := startServer(t)
	defer cancel()

	resp := call(t, srv.Listener.Addr().String(), wire.MethodPing, "")
	assert.Equal(t, pong, resp.Result)
	assert.Empty(t, resp.Err)
}

func TestAddThenFindNodeRPC(t *testing.T) {
	t.Parallel()

	srv, _, obs, cancel := startServer(t)
	defer cancel()

	addResp := call(t, srv.Listener.Addr().String(), wire.MethodAdd, "1000 10.0.0.1 9001")
	assert.Equal(t, added, addResp.Result)

	require.Eventually(t, func() bool { return len(obs.Leaves()) == 1 }, time.Second, time.Millisecond)

	findResp := call(t, srv.Listener.Addr().String(), wire.MethodFindNode, "1001")
	require.Empty(t, findResp.Err)

	p, err := peer.ParseContext(findResp.Result)
	require.NoError(t, err)
	assert.Equal(t, "1000", p.BID)
}

func TestFindNodeWithCallerRecordsCaller(t *testing.T) {
	t.Parallel()

	srv, _, obs, cancel := startServer(t)
	defer cancel()

	// The caller is recorded before the query is resolved, so it is the
	// only (and therefore nearest) peer the table can answer with.
	resp := call(t, srv.Listener.Addr().String(), wire.MethodFindNode, "1111 caller 1000 10.0.0.5 9005")
	assert.Equal(t, "1000 10.0.0.5 9005", resp.Result)

	require.Eventually(t, func() bool { return len(obs.Leaves()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"1000"}, obs.Leaves())
}

func TestFindNodeNoPeerRPC(t *testing.T) {
	t.Parallel()

	srv, _, _, cancel := startServer(t)
	defer cancel()

	resp := call(t, srv.Listener.Addr().String(), wire.MethodFindNode, "1111")
	assert.Equal(t, peer.NoPeer, resp.Result)
	assert.Empty(t, resp.Err)
}

func TestUnknownMethodRPC(t *testing.T) {
	t.Parallel()

	srv, _, _, cancel := startServer(t)
	defer cancel()

	resp := call(t, srv.Listener.Addr().String(), "bogus", "")
	assert.NotEmpty(t, resp.Err)
}
