// Package middleware wraps the router's per-message handler.
//
// Chain(A, B, C)(handler) → A(B(C(handler))), so A sees the message first and the
// result last. Handlers return an error instead of a response: the router only logs it,
// a failed message never ends the session.
package middleware

import (
	"context"
	"game-rpc/message"
)

type HandlerFunc func(ctx context.Context, msg *message.RPCMessage) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes several middlewares into one, outermost first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
