// Command devserver runs a local tic-tac-toe server for playing against the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"game-rpc/logger"
	"game-rpc/registry"
	"game-rpc/server"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:25001", "listen address")
	maxGames := flag.Int("max-games", 0, "close each connection after this many games (0 = unlimited)")
	etcd := flag.String("etcd", "", "comma-separated etcd endpoints; registers the server when set")
	advertise := flag.String("advertise", "", "address announced in etcd (defaults to -addr)")
	game := flag.String("game", "tictactoe", "game name to register under")
	level := flag.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = *level
	logCfg.FilePath = "logs/devserver.log"
	log, closer, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	svr := server.NewServer(server.WithLogger(log), server.WithMaxGames(*maxGames))
	if err := svr.Listen("tcp", *addr); err != nil {
		log.Error("listen failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
	log.Info("server listening", "addr", svr.Addr().String())

	// Lives until shutdown: it carries the registration lease keepalive and the peer watch
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if *etcd != "" {
		reg, err := registry.NewEtcdRegistry(strings.Split(*etcd, ","), 5*time.Second)
		if err != nil {
			log.Error("etcd connect failed", "error", err)
			os.Exit(1)
		}
		defer reg.Close()

		announced := *advertise
		if announced == "" {
			announced = svr.Addr().String()
		}
		if err := svr.Register(runCtx, reg, *game, announced, 10); err != nil {
			log.Error("register failed", "error", err)
			os.Exit(1)
		}
		log.Info("registered", "game", *game, "addr", announced)

		go logPeers(runCtx, log, reg, *game)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svr.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
		if err := svr.Shutdown(5 * time.Second); err != nil {
			log.Warn("shutdown", "error", err)
		}
	case err := <-errCh:
		log.Error("serve failed", "error", err)
	}
}

// logPeers reports every change to the set of servers registered for game.
func logPeers(ctx context.Context, log *slog.Logger, reg registry.Registry, game string) {
	for instances := range reg.Watch(ctx, game) {
		addrs := make([]string, 0, len(instances))
		for _, inst := range instances {
			addrs = append(addrs, inst.Addr)
		}
		log.Info("registered servers changed", "game", game, "count", len(addrs), "addrs", addrs)
	}
}
