package middleware

import (
	"context"
	"game-rpc/message"
	"log/slog"
	"time"
)

func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg *message.RPCMessage) error {
			start := time.Now()
			err := next(ctx, msg)
			duration := time.Since(start)
			if err != nil {
				log.Warn("dispatch", "method", msg.Method, "duration", duration, "error", err)
				return err
			}
			log.Debug("dispatch", "method", msg.Method, "duration", duration)
			return nil
		}
	}
}
