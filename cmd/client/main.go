// Command client connects to a game server, logs in with a token and plays until the
// connection ends.
//
//	client [-config client.yaml] [-env .env] <token>
//
// The token may also come from GAME_TOKEN. The process always exits with status 1:
// a session only ends when something stopped it.
package main

import (
	"context"
	"flag"
	"fmt"
	"game-rpc/client"
	"game-rpc/config"
	"game-rpc/logger"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "client.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <token>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.Identity = flag.Arg(0)
	}
	if cfg.Identity == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sess, err := client.NewSession(cfg.Identity, cfg, client.WithLogger(log))
	if err != nil {
		log.Error("failed to create session", "error", err)
		closer.Close()
		os.Exit(1)
	}

	// Ctrl+C ends the session the same way a server disconnect does
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = sess.Run(ctx)
	stop()

	log.Info("session ended", "session", sess.ID.String(), "reason", err)
	closer.Close()
	os.Exit(1)
}
