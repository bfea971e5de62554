// Package registry provides server discovery backed by etcd.
//
// Game servers announce themselves under a per-game prefix:
//
//	Key:   /game-rpc/{game}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if a server crashes, the lease expires
// and the entry disappears, so clients never dial a dead address from the registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/game-rpc/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

func prefixFor(game string) string {
	return keyPrefix + game + "/"
}

// Register stores the instance with a TTL lease and keeps the lease alive until ctx ends.
//
// leaseID stays local: several servers may share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, game string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, prefixFor(game)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", instance.Addr, err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keepalive: %w", err)
	}

	// Drain KeepAlive responses so the channel never fills up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an instance. Called during shutdown before the listener closes.
func (r *EtcdRegistry) Deregister(ctx context.Context, game string, addr string) error {
	_, err := r.client.Delete(ctx, prefixFor(game)+addr)
	return err
}

// Watch emits the full instance list every time something under the game prefix changes.
// An empty list means the last instance went away. The channel closes when ctx ends.
func (r *EtcdRegistry) Watch(ctx context.Context, game string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, prefixFor(game), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch instead of applying individual events
			instances, err := r.Discover(ctx, game)
			if err != nil && !errors.Is(err, ErrNoInstances) {
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all currently registered instances for a game.
func (r *EtcdRegistry) Discover(ctx context.Context, game string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, prefixFor(game), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", game, err)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoInstances, game)
	}
	return instances, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
