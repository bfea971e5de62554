package loadbalance

import (
	"fmt"
	"game-rpc/registry"
	"hash/crc32"
	"sort"
	"strings"
	"sync"
)

// ConsistentHashBalancer maps keys to instances on a hash ring. A client keyed by its
// identity token keeps landing on the same server as long as the server set is stable.
//
// Each real instance is placed on the ring as many virtual nodes so that a handful of
// servers still split the key space evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu      sync.Mutex
	ring    []uint32                            // Sorted hash values
	nodes   map[uint32]registry.ServiceInstance // Hash value → instance
	members string                              // Fingerprint of the instance set on the ring
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.ServiceInstance),
	}
}

// Add places an instance on the ring, hashing "{addr}#{i}" for each virtual node.
func (b *ConsistentHashBalancer) Add(instance registry.ServiceInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(instance)
	b.sortRing()
}

func (b *ConsistentHashBalancer) add(instance registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
}

func (b *ConsistentHashBalancer) sortRing() {
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Sync rebuilds the ring when the discovered instance set differs from the current one.
func (b *ConsistentHashBalancer) Sync(instances []registry.ServiceInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	fingerprint := strings.Join(addrs, ",")

	b.mu.Lock()
	defer b.mu.Unlock()
	if fingerprint == b.members {
		return
	}
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.ServiceInstance)
	for _, inst := range instances {
		b.add(inst)
	}
	b.sortRing()
	b.members = fingerprint
}

// PickKey finds the instance owning key: the first node clockwise from hash(key),
// wrapping to the start of the ring.
func (b *ConsistentHashBalancer) PickKey(key string) (*registry.ServiceInstance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

// Keyed adapts a hash ring to Balancer by always hashing the same key.
func Keyed(b *ConsistentHashBalancer, key string) Balancer {
	return &keyedBalancer{ring: b, key: key}
}

type keyedBalancer struct {
	ring *ConsistentHashBalancer
	key  string
}

func (k *keyedBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	k.ring.Sync(instances)
	return k.ring.PickKey(k.key)
}

func (k *keyedBalancer) Name() string {
	return k.ring.Name()
}
