package transport

import (
	"context"
	"fmt"
	"game-rpc/protocol"
	"log/slog"
	"net"
	"time"
)

const maxRetryDelay = 30 * time.Second

// Options tunes the transport. The zero value gives the baseline behaviour:
// no connect retries, no read timeout, unlimited sends, newline-terminated calls.
type Options struct {
	DialTimeout    time.Duration // 0 = OS default
	ConnectRetries int           // Extra connect attempts after the first failure
	RetryBaseDelay time.Duration // Doubles on every retry, capped at 30s

	ReadBufferSize int           // Bytes per read call, default 4096
	MaxFrameSize   int           // Longest accepted frame, default 1 MiB
	ReadTimeout    time.Duration // 0 = block forever on an idle server
	WriteTimeout   time.Duration

	// OmitDelimiter writes calls without the trailing '\n', reproducing the reference
	// client byte-for-byte. Servers that frame by newline cannot parse such calls.
	OmitDelimiter bool

	SendRate  float64 // Outbound calls per second, 0 = unlimited
	SendBurst int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = protocol.DefaultReadSize
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = protocol.DefaultMaxFrame
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
	if o.SendRate > 0 && o.SendBurst <= 0 {
		o.SendBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Dial opens the TCP connection to addr. Without ConnectRetries a failed connect is
// reported once and returned; with it, attempts are spaced by exponential backoff
// and stop after the configured count. There is never an unbounded retry loop.
func Dial(ctx context.Context, addr string, opts Options) (*ClientTransport, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("addr", addr)
	dialer := net.Dialer{Timeout: opts.DialTimeout}

	var lastErr error
	for attempt := 0; attempt <= opts.ConnectRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(opts.RetryBaseDelay, attempt)
			log.Warn("connect: retrying", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("transport: connect %s: %w", addr, ctx.Err())
			case <-time.After(delay):
			}
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Info("connected", "local", conn.LocalAddr().String())
			return NewClientTransport(conn, opts), nil
		}
		lastErr = err
		log.Error("connect: failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("transport: connect %s: %w", addr, lastErr)
}

// backoff returns base * 2^(attempt-1), capped.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
