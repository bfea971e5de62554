package middleware

import (
	"bytes"
	"context"
	"errors"
	"game-rpc/message"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(ctx context.Context, msg *message.RPCMessage) error {
	return nil
}

func failingHandler(ctx context.Context, msg *message.RPCMessage) error {
	return errors.New("board payload missing")
}

func panicHandler(ctx context.Context, msg *message.RPCMessage) error {
	var board [][]int
	_ = board[3][3]
	return nil
}

func TestLogging(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := LoggingMiddleware(log)(failingHandler)
	err := handler(context.Background(), &message.RPCMessage{Method: "Action"})
	require.Error(t, err, "the handler error passes through")
	assert.Contains(t, out.String(), "method=Action")
	assert.Contains(t, out.String(), "board payload missing")
}

func TestRecover(t *testing.T) {
	handler := RecoverMiddleware()(panicHandler)

	err := handler(context.Background(), &message.RPCMessage{Method: "Action"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestChain(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg *message.RPCMessage) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	handler := Chain(trace("a"), trace("b"), trace("c"))(okHandler)
	require.NoError(t, handler(context.Background(), &message.RPCMessage{Method: "Help"}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
