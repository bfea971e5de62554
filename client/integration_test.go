package client

import (
	"context"
	"game-rpc/config"
	"game-rpc/registry"
	"game-rpc/router"
	"game-rpc/server"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const etcdAddr = "127.0.0.1:2379"

func requireEtcd(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", etcdAddr, 200*time.Millisecond)
	if err != nil {
		t.Skip("etcd not available on " + etcdAddr)
	}
	conn.Close()
}

// Full chain: devserver → etcd registration → session discovery → balancer → transport → router → policy
func TestFullIntegrationWithEtcd(t *testing.T) {
	requireEtcd(t)

	reg, err := registry.NewEtcdRegistry([]string{etcdAddr}, 2*time.Second)
	require.NoError(t, err)
	defer reg.Close()

	const gameName = "tictactoe-integration"
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var servers []*server.Server
	for i := 0; i < 2; i++ {
		svr := server.NewServer(server.WithMaxGames(1))
		require.NoError(t, svr.Listen("tcp", "127.0.0.1:0"))
		go svr.Serve()
		require.NoError(t, svr.Register(ctx, reg, gameName, svr.Addr().String(), 10))
		servers = append(servers, svr)
	}
	defer func() {
		for _, svr := range servers {
			svr.Shutdown(3 * time.Second)
		}
	}()

	cfg := config.DefaultConfig()
	cfg.Game = gameName
	cfg.Discovery.Enabled = true
	cfg.Discovery.Endpoints = []string{etcdAddr}
	cfg.Discovery.Strategy = "round_robin"
	cfg.Transport.ReadTimeout = 5 * time.Second

	// The game name is not a registered policy, so the session gets one explicitly
	policy, err := lookupTicTacToe()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		sess, err := NewSession("token-int", cfg, WithPolicy(policy))
		require.NoError(t, err)
		assert.ErrorIs(t, sess.Run(ctx), router.ErrServerClosing, "session %d", i)
	}

	// Deregistered servers disappear from discovery
	for _, svr := range servers {
		require.NoError(t, reg.Deregister(ctx, gameName, svr.Addr().String()))
	}
	sess, err := NewSession("token-int", cfg, WithPolicy(policy))
	require.NoError(t, err)
	assert.ErrorIs(t, sess.Run(ctx), registry.ErrNoInstances)
}
