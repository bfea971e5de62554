// Package loadbalance picks which discovered game server a client connects to.
//
// Three strategies are implemented:
//   - RoundRobin:      spread successive sessions over equal servers
//   - WeightedRandom:  servers of different capacity
//   - ConsistentHash:  the same identity token always lands on the same server
package loadbalance

import (
	"fmt"
	"game-rpc/registry"
)

// Balancer selects one instance from a discovered list.
type Balancer interface {
	// Pick must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New builds a balancer by strategy name. key is only used by consistent_hash.
func New(strategy string, key string) (Balancer, error) {
	switch strategy {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return Keyed(NewConsistentHashBalancer(), key), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", strategy)
	}
}
