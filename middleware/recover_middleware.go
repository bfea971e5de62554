package middleware

import (
	"context"
	"fmt"
	"game-rpc/message"
)

// RecoverMiddleware turns a panic in a handler into an error for that message only.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg *message.RPCMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler panic on %q: %v", msg.Method, r)
				}
			}()
			return next(ctx, msg)
		}
	}
}
