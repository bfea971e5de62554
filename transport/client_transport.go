// Package transport implements the client side of the game connection.
//
// ClientTransport owns the single TCP connection for the whole process run. It has a
// single flow of control: Serve reads from the socket, cuts the stream into frames and
// hands each frame to a FrameHandler inline. Whatever the handler sends back (the Login
// handshake, a move) is written from the same goroutine before the next frame is looked at.
//
//	Serve ──Read──→ FrameBuffer ──frame──→ handler.HandleFrame ──Send──→ conn
//	  ↑                                                               │
//	  └──────────────────────── next read ────────────────────────────┘
//
// Disconnection is terminal: once the connection is closed it is never reused.
package transport

import (
	"context"
	"errors"
	"fmt"
	"game-rpc/codec"
	"game-rpc/message"
	"game-rpc/protocol"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrEmptyMethod is a caller bug, reported before anything touches the socket.
	ErrEmptyMethod = errors.New("transport: method name cannot be empty")
	// ErrNotConnected is returned by Send once the connection has been closed.
	ErrNotConnected = errors.New("transport: not connected to server")
	// ErrPeerClosed means the server ended the stream (zero-byte read / EOF).
	ErrPeerClosed = errors.New("transport: server closed the connection")
	// ErrClosed is the reason recorded when Disconnect is called without one.
	ErrClosed = errors.New("transport: connection closed")
)

// FrameHandler consumes one complete frame at a time.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame string)
}

// FrameHandlerFunc adapts a plain function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, frame string)

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, frame string) {
	f(ctx, frame)
}

// Stats counts traffic on the connection.
type Stats struct {
	BytesReceived  uint64
	FramesReceived uint64
	BytesSent      uint64
	MessagesSent   uint64
}

// ClientTransport manages the one TCP connection to the game server.
type ClientTransport struct {
	conn    net.Conn
	opts    Options
	codec   codec.Codec
	frames  *protocol.FrameBuffer // Trailing fragment survives between reads
	limiter *rate.Limiter         // nil when outbound traffic is unlimited
	log     *slog.Logger

	mu     sync.Mutex // Guards closed/reason; Disconnect may come from a signal handler
	closed bool
	reason error

	bytesIn  atomic.Uint64
	framesIn atomic.Uint64
	bytesOut atomic.Uint64
	messages atomic.Uint64
}

// NewClientTransport wraps an established connection.
func NewClientTransport(conn net.Conn, opts Options) *ClientTransport {
	opts = opts.withDefaults()
	t := &ClientTransport{
		conn:   conn,
		opts:   opts,
		codec:  codec.GetCodec(codec.CodecTypeJSON),
		frames: protocol.NewFrameBuffer(opts.MaxFrameSize),
		log:    opts.Logger.With("remote", conn.RemoteAddr().String()),
	}
	if opts.SendRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst)
	}
	return t
}

// Serve runs the receive loop until the connection ends and returns why it ended.
// The returned error is never nil: ErrPeerClosed on EOF, the reason given to Disconnect
// when a handler (or anyone else) closed the connection, ctx.Err() on cancellation,
// or the wrapped I/O fault.
func (t *ClientTransport) Serve(ctx context.Context, h FrameHandler) error {
	if !t.Connected() {
		return ErrNotConnected
	}

	// Unblock a pending Read when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, t.opts.ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return t.readFailed(ctx, err)
		}
		if t.opts.ReadTimeout > 0 {
			t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
			// A cancellation landing between the check above and this deadline was overwritten
			if err := ctx.Err(); err != nil {
				return t.readFailed(ctx, err)
			}
		}
		n, err := t.conn.Read(buf)
		if n == 0 && err == nil {
			err = io.EOF
		}

		if n > 0 {
			t.bytesIn.Add(uint64(n))
			frames, ferr := t.frames.Feed(buf[:n])
			for _, frame := range frames {
				// A handler may have closed the session (ServerClosing); drop the rest of the batch
				if !t.Connected() {
					return t.Err()
				}
				t.framesIn.Add(1)
				h.HandleFrame(ctx, frame)
			}
			if !t.Connected() {
				return t.Err()
			}
			if ferr != nil {
				t.log.Error("receive: framing error", "error", ferr, "pending", t.frames.Pending())
				t.Disconnect(ferr)
				return ferr
			}
		}

		if err != nil {
			return t.readFailed(ctx, err)
		}
	}
}

func (t *ClientTransport) readFailed(ctx context.Context, err error) error {
	if !t.Connected() {
		return t.Err()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		t.log.Info("receive: cancelled", "error", ctxErr)
		t.Disconnect(ctxErr)
		return ctxErr
	}
	if errors.Is(err, io.EOF) {
		t.log.Info("receive: server closed the stream", "pending", t.frames.Pending())
		t.Disconnect(ErrPeerClosed)
		return ErrPeerClosed
	}
	wrapped := fmt.Errorf("transport: receive: %w", err)
	t.log.Error("receive: I/O fault", "error", err)
	t.Disconnect(wrapped)
	return wrapped
}

// Send serializes {"method": method, "args": args} as one line and writes it.
//
// Errors never escape as panics: an empty method yields ErrEmptyMethod without touching
// the socket, a closed connection yields ErrNotConnected, and a write fault closes the
// connection and is returned wrapped.
func (t *ClientTransport) Send(ctx context.Context, method string, args any) error {
	if method == "" {
		t.log.Error("send: rejected call", "error", ErrEmptyMethod)
		return ErrEmptyMethod
	}
	if !t.Connected() {
		t.log.Warn("send: failed", "method", method, "error", ErrNotConnected)
		return ErrNotConnected
	}

	body, err := t.codec.Encode(&message.Call{Method: method, Args: args})
	if err != nil {
		t.log.Error("send: encode failed", "method", method, "error", err)
		return fmt.Errorf("transport: encode %s: %w", method, err)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("transport: send %s: %w", method, err)
		}
	}

	if t.opts.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	}
	if err := protocol.WriteFrame(t.conn, body, !t.opts.OmitDelimiter); err != nil {
		wrapped := fmt.Errorf("transport: send %s: %w", method, err)
		t.log.Error("send: I/O fault", "method", method, "error", err)
		t.Disconnect(wrapped)
		return wrapped
	}

	written := len(body)
	if !t.opts.OmitDelimiter {
		written++
	}
	t.messages.Add(1)
	t.bytesOut.Add(uint64(written))
	t.log.Debug("send", "method", method, "body", string(body))
	return nil
}

// Disconnect closes the socket and records why. Only the first call has any effect.
func (t *ClientTransport) Disconnect(reason error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if reason == nil {
		reason = ErrClosed
	}
	t.closed = true
	t.reason = reason
	t.log.Info("disconnected", "reason", reason)
	return t.conn.Close()
}

// Connected reports whether the connection is still open.
func (t *ClientTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Err returns the reason the connection was closed, or nil while it is open.
func (t *ClientTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Stats returns a snapshot of the traffic counters.
func (t *ClientTransport) Stats() Stats {
	return Stats{
		BytesReceived:  t.bytesIn.Load(),
		FramesReceived: t.framesIn.Load(),
		BytesSent:      t.bytesOut.Load(),
		MessagesSent:   t.messages.Load(),
	}
}
