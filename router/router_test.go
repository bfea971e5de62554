package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"game-rpc/codec"
	"game-rpc/game"
	"game-rpc/message"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records outbound calls as they would appear on the wire.
type fakeConn struct {
	sent    []string
	reason  error
	sendErr error
}

func (c *fakeConn) Send(ctx context.Context, method string, args any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	body, err := codec.GetCodec(codec.CodecTypeJSON).Encode(&message.Call{Method: method, Args: args})
	if err != nil {
		return err
	}
	c.sent = append(c.sent, string(body))
	return nil
}

func (c *fakeConn) Disconnect(reason error) error {
	c.reason = reason
	return nil
}

type recordingPolicy struct {
	methods []string
	err     error
}

func (p *recordingPolicy) HandleMessage(ctx context.Context, msg *message.RPCMessage, s game.Sender) error {
	p.methods = append(p.methods, msg.Method)
	return p.err
}

func newTestRouter(policy game.Policy) (*Router, *fakeConn, *bytes.Buffer) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	conn := &fakeConn{}
	return New("token-42", conn, policy, WithLogger(log)), conn, &logs
}

func TestLoginReply(t *testing.T) {
	r, conn, _ := newTestRouter(nil)

	r.HandleFrame(context.Background(), `{"Method":"Login","Args":{}}`)

	require.Len(t, conn.sent, 1)
	assert.Equal(t, `{"method":"Login","args":{"UUID":"token-42"}}`, conn.sent[0])
}

func TestServerClosingIsTerminal(t *testing.T) {
	policy := &recordingPolicy{}
	r, conn, _ := newTestRouter(policy)

	r.HandleFrame(context.Background(), `{"Method":"Event","Args":{"MethodName":"ServerClosing"}}`)

	assert.Equal(t, StateClosed, r.State())
	assert.ErrorIs(t, conn.reason, ErrServerClosing)

	// Nothing is dispatched afterwards
	r.HandleFrame(context.Background(), `{"Method":"Login","Args":{}}`)
	r.HandleFrame(context.Background(), `{"Method":"Action","Args":{"Array":"[[0]]"}}`)
	assert.Empty(t, conn.sent)
	assert.Empty(t, policy.methods)
}

func TestOtherEventKeepsSession(t *testing.T) {
	r, conn, logs := newTestRouter(nil)

	r.HandleFrame(context.Background(), `{"Method":"Event","Args":{"MethodName":"GameStart","Player":1}}`)

	assert.Equal(t, StateActive, r.State())
	assert.Nil(t, conn.reason)
	assert.Empty(t, conn.sent)
	assert.Contains(t, logs.String(), "GameStart")
}

func TestHelpIsLoggedOnly(t *testing.T) {
	r, conn, logs := newTestRouter(nil)

	r.HandleFrame(context.Background(), `{"Method":"Help","Args":{"Commands":["PutToken"]}}`)

	assert.Empty(t, conn.sent)
	assert.Contains(t, logs.String(), "PutToken")
}

func TestMalformedFrameIsContained(t *testing.T) {
	r, _, logs := newTestRouter(nil)
	policy := &recordingPolicy{}
	r.policy = policy

	r.HandleFrame(context.Background(), "not-json")
	r.HandleFrame(context.Background(), "null")
	r.HandleFrame(context.Background(), `{"Method":"Help","Args":{}}`)
	r.HandleFrame(context.Background(), `{"Method":"Action","Args":{}}`)

	assert.Equal(t, StateActive, r.State())
	assert.Equal(t, []string{"Action"}, policy.methods)
	assert.Contains(t, logs.String(), "not-json")
	assert.Contains(t, logs.String(), "decode")
}

func TestEmptyMethodIsIgnored(t *testing.T) {
	policy := &recordingPolicy{}
	r, conn, _ := newTestRouter(policy)

	r.HandleFrame(context.Background(), `{"Args":{"x":1}}`)
	r.HandleFrame(context.Background(), `{"Method":"","Args":null}`)

	assert.Empty(t, policy.methods)
	assert.Empty(t, conn.sent)
}

func TestCaseSensitiveDispatch(t *testing.T) {
	policy := &recordingPolicy{}
	r, conn, _ := newTestRouter(policy)

	// Not the built-in Login; the policy gets it
	r.HandleFrame(context.Background(), `{"Method":"LOGIN","Args":{}}`)

	assert.Equal(t, []string{"LOGIN"}, policy.methods)
	assert.Empty(t, conn.sent)
}

func TestUnhandledMethodIsLogged(t *testing.T) {
	r, conn, logs := newTestRouter(game.Silent)

	r.HandleFrame(context.Background(), `{"Method":"Scoreboard","Args":{"Top":[1,2]}}`)

	assert.Equal(t, StateActive, r.State())
	assert.Empty(t, conn.sent)
	assert.Contains(t, logs.String(), "unhandled method")
}

func TestPolicyPanicIsContained(t *testing.T) {
	policy := game.PolicyFunc(func(ctx context.Context, msg *message.RPCMessage, s game.Sender) error {
		panic("corrupt board")
	})
	r, _, logs := newTestRouter(policy)

	assert.NotPanics(t, func() {
		r.HandleFrame(context.Background(), `{"Method":"Action","Args":{}}`)
	})
	assert.Equal(t, StateActive, r.State())
	assert.Contains(t, logs.String(), "corrupt board")
}

func TestPolicyMoveGoesThroughConn(t *testing.T) {
	r, conn, _ := newTestRouter(game.NewTicTacToe(nil))

	r.HandleFrame(context.Background(), `{"Method":"Action","Args":{"Array":"[[1,1,1],[1,0,1],[1,1,1]]"}}`)

	require.Len(t, conn.sent, 1)
	var call struct {
		Method string    `json:"method"`
		Args   game.Move `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(conn.sent[0]), &call))
	assert.Equal(t, "PutToken", call.Method)
	assert.Equal(t, game.Move{X: 1, Y: 1}, call.Args)
}

func TestSendFailureDoesNotPanic(t *testing.T) {
	r, conn, logs := newTestRouter(nil)
	conn.sendErr = errors.New("transport: not connected to server")

	r.HandleFrame(context.Background(), `{"Method":"Login","Args":{}}`)

	assert.Contains(t, logs.String(), "not connected")
}

func BenchmarkHandleFrame(b *testing.B) {
	conn := &fakeConn{}
	r := New("token-42", conn, game.NewTicTacToe(nil))
	frame := `{"Method":"Action","Args":{"Array":"[[0,1,2],[0,0,0],[2,1,0]]"}}`
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.HandleFrame(ctx, frame)
		conn.sent = conn.sent[:0]
	}
}
