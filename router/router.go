// Package router decodes framed messages and dispatches them.
//
// Dispatch table (case-sensitive):
//
//	Login                          → log, reply Login{"UUID": token}
//	Event, MethodName=ServerClosing → log, disconnect (terminal)
//	Event, anything else           → log
//	Help                           → log
//	anything else                  → game policy
//
// Decode and dispatch failures are logged and contained to the offending message.
// Only the transport decides when the session ends.
package router

import (
	"context"
	"errors"
	"game-rpc/codec"
	"game-rpc/game"
	"game-rpc/message"
	"game-rpc/middleware"
	"log/slog"
	"sync/atomic"
)

// ErrServerClosing is the disconnect reason for the server's terminal event.
var ErrServerClosing = errors.New("router: server is closing")

// State of the router. Closed is terminal.
type State int32

const (
	StateActive State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "active"
}

// Conn is what the router needs from the transport.
type Conn interface {
	game.Sender
	Disconnect(reason error) error
}

// Router owns no connection state; it acts on one frame at a time.
type Router struct {
	identity    string
	conn        Conn
	policy      game.Policy
	codec       codec.Codec
	log         *slog.Logger
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // Built lazily from middlewares around dispatch
	state       atomic.Int32
}

type Option func(*Router)

// WithLogger sets the logger used for message payloads and failures.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithMiddleware replaces the default chain (logging around panic recovery).
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Router) { r.middlewares = mws }
}

// New creates a router that answers Login with identity and hands unknown methods to policy.
func New(identity string, conn Conn, policy game.Policy, opts ...Option) *Router {
	r := &Router{
		identity: identity,
		conn:     conn,
		policy:   policy,
		codec:    codec.GetCodec(codec.CodecTypeJSON),
		log:      slog.New(slog.DiscardHandler),
	}
	if r.policy == nil {
		r.policy = game.Silent
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.middlewares == nil {
		r.middlewares = []middleware.Middleware{
			middleware.LoggingMiddleware(r.log),
			middleware.RecoverMiddleware(),
		}
	}
	r.handler = middleware.Chain(r.middlewares...)(r.dispatch)
	return r
}

// State reports whether the router still accepts messages.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Close moves the router to Closed. Called when the transport goes away for any reason.
func (r *Router) Close() {
	r.state.Store(int32(StateClosed))
}

// HandleFrame decodes one frame and dispatches it. It never panics and never fails:
// a bad frame is logged with its raw text and dropped.
func (r *Router) HandleFrame(ctx context.Context, frame string) {
	if r.State() == StateClosed {
		r.log.Debug("dispatch: dropped frame after close", "frame", frame)
		return
	}

	var msg message.RPCMessage
	if err := r.codec.Decode([]byte(frame), &msg); err != nil {
		r.log.Error("decode: dropping frame", "error", err, "frame", frame)
		return
	}
	if msg.Method == "" {
		return
	}

	// Errors are already logged by the chain
	_ = r.handler(ctx, &msg)
}

func (r *Router) dispatch(ctx context.Context, msg *message.RPCMessage) error {
	switch msg.Kind() {
	case message.KindLogin:
		r.logPayload(msg)
		return r.conn.Send(ctx, message.MethodLogin, message.LoginArgs{UUID: r.identity})

	case message.KindEvent:
		r.logPayload(msg)
		ev, err := msg.Event()
		if err != nil {
			return err
		}
		if ev.MethodName == message.EventServerClosing {
			r.Close()
			return r.conn.Disconnect(ErrServerClosing)
		}
		return nil

	case message.KindHelp:
		r.logPayload(msg)
		return nil

	default:
		err := r.policy.HandleMessage(ctx, msg, r.conn)
		if errors.Is(err, game.ErrUnhandled) {
			r.log.Warn("dispatch: unhandled method", "method", msg.Method, "args", string(msg.Args))
			return nil
		}
		return err
	}
}

func (r *Router) logPayload(msg *message.RPCMessage) {
	r.log.Info(msg.Method, "args", string(msg.Args))
}
