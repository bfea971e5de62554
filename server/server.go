// Package server implements a small tic-tac-toe server speaking the client's wire protocol.
// It exists for local play and for end-to-end tests of the client.
//
// Connection lifecycle:
//
//	Accept conn → send Login
//	  ← Login{UUID}        → Event{GameStart}, Action{Array}
//	  ← PutToken{x,y}      → bot move, Action{Array} or Event{GameOver}
//	  ...MaxGames played   → Event{ServerClosing}, close
//
// Each connection is served by one goroutine: the game is turn-based, so requests on a
// connection are handled strictly in order.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"game-rpc/codec"
	"game-rpc/message"
	"game-rpc/protocol"
	"game-rpc/registry"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// noticeTimeout bounds the ServerClosing write to a client that no longer reads.
const noticeTimeout = time.Second

// Call is a decoded client request.
type Call struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// HandlerFunc serves one call on a connection. A returned error is reported to the
// client as an Error event; the connection stays open.
type HandlerFunc func(ctx context.Context, c *Conn, args json.RawMessage) error

// Server accepts game clients.
type Server struct {
	handlers map[string]HandlerFunc
	listener net.Listener
	wg       sync.WaitGroup // Tracks live connections for graceful shutdown
	shutdown atomic.Bool    // Set before the listener closes so Accept errors are expected
	log      *slog.Logger
	maxGames int

	mu    sync.Mutex
	conns map[*Conn]struct{}

	registry      registry.Registry // nil unless Register was called
	game          string
	advertiseAddr string
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMaxGames closes a connection with ServerClosing after n finished games (0 = never).
func WithMaxGames(n int) Option {
	return func(s *Server) { s.maxGames = n }
}

// NewServer creates a server with the tic-tac-toe handlers installed.
func NewServer(opts ...Option) *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[*Conn]struct{}),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Handle(message.MethodLogin, s.handleLogin)
	s.Handle(message.MethodHelp, s.handleHelp)
	s.Handle(methodPutToken, s.handlePutToken)
	return s
}

// Handle installs or replaces the handler for method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Listen binds the listening socket. Call Serve afterwards.
func (s *Server) Listen(network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(network, address string) error {
	if err := s.Listen(network, address); err != nil {
		return err
	}
	return s.Serve()
}

// Register announces this server in the registry under game.
func (s *Server) Register(ctx context.Context, reg registry.Registry, game, advertiseAddr string, ttl int64) error {
	if err := reg.Register(ctx, game, registry.ServiceInstance{Addr: advertiseAddr, Weight: 1}, ttl); err != nil {
		return err
	}
	s.registry = reg
	s.game = game
	s.advertiseAddr = advertiseAddr
	return nil
}

func (s *Server) handleConn(netConn net.Conn) {
	defer s.wg.Done()

	c := newConn(netConn, s)
	s.track(c, true)
	defer s.track(c, false)
	defer c.Close()

	log := s.log.With("remote", netConn.RemoteAddr().String())
	log.Info("client connected")

	if err := c.Send(message.MethodLogin, map[string]string{"Message": "Send Login with your UUID"}); err != nil {
		return
	}

	ctx := context.Background()
	frames := protocol.NewFrameBuffer(0)
	buf := make([]byte, protocol.DefaultReadSize)
	for {
		n, err := netConn.Read(buf)
		if n > 0 {
			lines, ferr := frames.Feed(buf[:n])
			for _, line := range lines {
				if c.closing.Load() {
					return
				}
				s.dispatch(ctx, c, line, log)
			}
			if ferr != nil {
				log.Warn("framing error", "error", ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closing.Load() {
				log.Warn("read failed", "error", err)
			}
			log.Info("client disconnected", "uuid", c.UUID())
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *Conn, line string, log *slog.Logger) {
	var call Call
	if err := c.codec.Decode([]byte(line), &call); err != nil || call.Method == "" {
		log.Warn("bad request", "frame", line, "error", err)
		c.Send(message.MethodEvent, errorEvent("malformed request"))
		return
	}

	h, ok := s.handlers[call.Method]
	if !ok {
		c.Send(message.MethodEvent, errorEvent(fmt.Sprintf("unknown method %q", call.Method)))
		return
	}

	start := time.Now()
	err := h(ctx, c, call.Args)
	log.Debug("request", "method", call.Method, "duration", time.Since(start), "error", err)
	if err != nil {
		c.Send(message.MethodEvent, errorEvent(err.Error()))
	}
}

func (s *Server) track(c *Conn, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry so no new client is sent here
//  2. Close the listener
//  3. Tell every client ServerClosing and close its connection
//  4. Wait for connection goroutines to finish (with timeout)
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		s.registry.Deregister(ctx, s.game, s.advertiseAddr)
		cancel()
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	// Notify outside the lock: a departing connection needs it to untrack itself
	for _, c := range conns {
		go c.closeWithNotice()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for client connections to close")
	}
}

// Conn is one client connection and its game state.
type Conn struct {
	net.Conn
	server  *Server
	codec   codec.Codec
	writeMu sync.Mutex // Shutdown writes from another goroutine
	closing atomic.Bool

	uuid   string
	board  *board
	played int
}

func newConn(conn net.Conn, s *Server) *Conn {
	return &Conn{
		Conn:   conn,
		server: s,
		codec:  codec.GetCodec(codec.CodecTypeJSON),
		board:  newBoard(),
	}
}

// UUID returns the identity the client logged in with.
func (c *Conn) UUID() string {
	return c.uuid
}

// Send writes one newline-terminated {"Method","Args"} message.
func (c *Conn) Send(method string, args any) error {
	msg, err := message.NewRPCMessage(method, args)
	if err != nil {
		return err
	}
	body, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.Conn, body, true)
}

func (c *Conn) closeWithNotice() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	// Also releases a handler write stuck on a client that stopped reading
	c.Conn.SetWriteDeadline(time.Now().Add(noticeTimeout))
	c.Send(message.MethodEvent, map[string]string{"MethodName": message.EventServerClosing})
	c.Conn.Close()
}

func errorEvent(msg string) map[string]string {
	return map[string]string{"MethodName": "Error", "Message": msg}
}
