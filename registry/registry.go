package registry

import (
	"context"
	"errors"
)

// ErrNoInstances is returned when discovery finds no server for a game.
var ErrNoInstances = errors.New("registry: no server instances")

type ServiceInstance struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

// Resolver finds the game servers a client may connect to.
type Resolver interface {
	Discover(ctx context.Context, game string) ([]ServiceInstance, error)
}

// Registry is the full read/write view used by servers announcing themselves.
type Registry interface {
	Resolver
	Register(ctx context.Context, game string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, game string, addr string) error
	Watch(ctx context.Context, game string) <-chan []ServiceInstance
}

// StaticResolver serves a fixed list, the same for every game.
type StaticResolver []ServiceInstance

func (s StaticResolver) Discover(ctx context.Context, game string) ([]ServiceInstance, error) {
	if len(s) == 0 {
		return nil, ErrNoInstances
	}
	return append([]ServiceInstance(nil), s...), nil
}
