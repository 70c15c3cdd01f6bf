// Command kadnode runs a single routing node: a Routing Manager, a
// Node-View Observer, a Refresh Worker and an RPC front-end wired
// together, grounded on original_source/server.py's runner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadnode/kadnode/internal/nodeview"
	"github.com/kadnode/kadnode/internal/peer"
	"github.com/kadnode/kadnode/internal/peerclient"
	"github.com/kadnode/kadnode/internal/refresh"
	"github.com/kadnode/kadnode/internal/routing"
	"github.com/kadnode/kadnode/internal/rpcserver"
	"github.com/kadnode/kadnode/internal/xlog"
	"github.com/rs/zerolog"
)

func main() {
	bid := flag.String("bid", "0000", "bid of the node")
	depth := flag.Int("depth", 4, "depth of the routing table")
	k := flag.Int("k", 1, "number of peers in each bucket")
	ip := flag.String("ip", "0.0.0.0", "ip of the node")
	port := flag.Int("port", 4242, "port of the node")
	bootstrapBID := flag.String("bootstrap-bid", "", "bid of the bootstrap node")
	bootstrapIP := flag.String("bootstrap-ip", "", "ip of the bootstrap node")
	bootstrapPort := flag.Int("bootstrap-port", 0, "port of the bootstrap node")
	refreshInterval := flag.Duration("refresh-interval", 10*time.Second, "interval between refresh cycles; doubled, it is also the RPC find_node dispatch timeout")
	logLevel := flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	xlog.SetLevel(level)

	logger := xlog.With("kadnode")
	logger.Info().Str("bid", *bid).Int("depth", *depth).Int("k", *k).Msg("starting kademlia node")

	ownerCtx := fmt.Sprintf("%s %s %d", *bid, *ip, *port)

	table := routing.New(*bid, *depth, *k, ownerCtx)
	obs := nodeview.NewObserver(*depth, 256)
	mgr := routing.NewManager(table, func(p peer.Peer) bool {
		return peerclient.New(p.IP, p.Port).Ping(context.Background())
	}, obs.In, 256)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go obs.Run(ctx)
	go mgr.Run(ctx)

	if *bootstrapBID != "" && *bootstrapIP != "" && *bootstrapPort != 0 {
		logger.Info().Str("bid", *bootstrapBID).Str("ip", *bootstrapIP).Int("port", *bootstrapPort).Msg("bootstrapping")
		bootstrapPeer := peer.New(*bootstrapBID, *bootstrapIP, *bootstrapPort)
		mgr.In <- routing.AddCommand{Peer: bootstrapPeer}
	}

	worker := refresh.NewWorker(mgr.In, func(ip string, port int) peerclient.Client {
		return peerclient.New(ip, port)
	}, ownerCtx, *refreshInterval, time.Now().UnixNano())
	go worker.Run(ctx)

	addr := fmt.Sprintf("%s:%d", *ip, *port)
	srv, err := rpcserver.New(addr, mgr.In, obs.In, *refreshInterval*2)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bind rpc server")
	}

	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error().Err(err).Msg("rpc server stopped")
		}
	}()

	logger.Info().Str("addr", addr).Msg("kademlia node started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	cancel()
	srv.Listener.Close()
}
