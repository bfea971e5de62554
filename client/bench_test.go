package client

import (
	"context"
	"game-rpc/config"
	"game-rpc/game"
	"game-rpc/registry"
	"game-rpc/server"
	"testing"
	"time"
)

func lookupTicTacToe() (game.Policy, error) {
	return game.Lookup("tictactoe")
}

// One full session per iteration: connect, log in, play a game, get closed.
func BenchmarkSessionGame(b *testing.B) {
	svr := server.NewServer(server.WithMaxGames(1))
	if err := svr.Listen("tcp", "127.0.0.1:0"); err != nil {
		b.Fatal(err)
	}
	go svr.Serve()
	b.Cleanup(func() { svr.Shutdown(3 * time.Second) })

	cfg := config.DefaultConfig()
	resolver := registry.StaticResolver{{Addr: svr.Addr().String(), Weight: 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sess, err := NewSession("bench", cfg, WithResolver(resolver))
		if err != nil {
			b.Fatal(err)
		}
		sess.Run(context.Background())
	}
}
