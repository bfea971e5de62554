// Package client runs one game session: resolve a server, connect, log in, play
// until the connection ends.
package client

import (
	"context"
	"errors"
	"fmt"
	"game-rpc/config"
	"game-rpc/game"
	"game-rpc/loadbalance"
	"game-rpc/registry"
	"game-rpc/router"
	"game-rpc/transport"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyToken is returned when a session is created without an identity token.
var ErrEmptyToken = errors.New("client: identity token is required")

// Session is a single connect-play-disconnect cycle. It is not reusable: create a
// new Session to play again.
type Session struct {
	ID       uuid.UUID // Local correlation id, attached to every log line
	identity string
	cfg      *config.Config
	resolver registry.Resolver
	balancer loadbalance.Balancer
	policy   game.Policy
	log      *slog.Logger

	transport *transport.ClientTransport
}

type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithResolver overrides server discovery. Without it the session uses etcd when
// discovery is enabled, and the configured address otherwise.
func WithResolver(r registry.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

func WithBalancer(b loadbalance.Balancer) Option {
	return func(s *Session) { s.balancer = b }
}

// WithPolicy replaces the policy selected by the configured game name.
func WithPolicy(p game.Policy) Option {
	return func(s *Session) { s.policy = p }
}

// NewSession validates its inputs and prepares a session for identity.
// A nil cfg means config.DefaultConfig.
func NewSession(identity string, cfg *config.Config, opts ...Option) (*Session, error) {
	if identity == "" {
		return nil, ErrEmptyToken
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Session{
		ID:       uuid.New(),
		identity: identity,
		cfg:      cfg,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.policy == nil {
		p, err := game.Lookup(cfg.Game)
		if err != nil {
			return nil, err
		}
		s.policy = p
	}
	if s.balancer == nil {
		b, err := loadbalance.New(cfg.Discovery.Strategy, identity)
		if err != nil {
			return nil, err
		}
		s.balancer = b
	}
	s.log = s.log.With("session", s.ID.String())
	return s, nil
}

// Run connects and serves inbound messages until the server closes the connection,
// announces ServerClosing, a fatal fault occurs or ctx is cancelled. The returned
// error names the reason and is never nil once a connection was made.
func (s *Session) Run(ctx context.Context) error {
	addr, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	s.log.Info("connecting", "addr", addr, "game", s.cfg.Game)
	t, err := transport.Dial(ctx, addr, s.transportOptions())
	if err != nil {
		s.log.Error("connect failed", "addr", addr, "error", err)
		return err
	}
	s.transport = t
	s.log.Info("connected", "addr", addr)

	rt := router.New(s.identity, t, s.policy, router.WithLogger(s.log))
	start := time.Now()
	err = t.Serve(ctx, rt)
	rt.Close()

	stats := t.Stats()
	s.log.Info("disconnected",
		"reason", err,
		"duration", time.Since(start),
		"received", stats.FramesReceived,
		"sent", stats.MessagesSent,
	)
	return err
}

// Stats returns transport counters, zero before Run has connected.
func (s *Session) Stats() transport.Stats {
	if s.transport == nil {
		return transport.Stats{}
	}
	return s.transport.Stats()
}

func (s *Session) resolve(ctx context.Context) (string, error) {
	resolver := s.resolver
	if resolver == nil {
		if !s.cfg.Discovery.Enabled {
			return s.cfg.Server.Addr(), nil
		}
		reg, err := registry.NewEtcdRegistry(s.cfg.Discovery.Endpoints, s.cfg.Discovery.DialTimeout)
		if err != nil {
			return "", fmt.Errorf("client: discovery: %w", err)
		}
		defer reg.Close()
		resolver = reg
	}

	instances, err := resolver.Discover(ctx, s.cfg.Game)
	if err != nil {
		return "", fmt.Errorf("client: discover %s servers: %w", s.cfg.Game, err)
	}
	inst, err := s.balancer.Pick(instances)
	if err != nil {
		return "", err
	}
	s.log.Debug("server selected", "addr", inst.Addr, "strategy", s.balancer.Name(), "candidates", len(instances))
	return inst.Addr, nil
}

func (s *Session) transportOptions() transport.Options {
	tc := s.cfg.Transport
	return transport.Options{
		DialTimeout:    tc.DialTimeout,
		ConnectRetries: tc.ConnectRetries,
		RetryBaseDelay: tc.RetryBaseDelay,
		ReadBufferSize: tc.ReadBufferSize,
		MaxFrameSize:   tc.MaxFrameSize,
		ReadTimeout:    tc.ReadTimeout,
		WriteTimeout:   tc.WriteTimeout,
		OmitDelimiter:  tc.OmitDelimiter,
		SendRate:       tc.SendRate,
		SendBurst:      tc.SendBurst,
		Logger:         s.log,
	}
}
