// README: Dedup guards: at most one scheduled auto-accept per order.
package autoaccept

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Dedup decides whether this process may schedule the delayed confirm for an
// order. Duplicate change notifications for the same order must not schedule
// duplicate actions.
type Dedup interface {
	TryAcquire(ctx context.Context, orderID types.ID) (bool, error)
}

// MemoryDedup is the single-process guard.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[types.ID]struct{}
}

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{seen: make(map[types.ID]struct{})}
}

func (d *MemoryDedup) TryAcquire(_ context.Context, orderID types.ID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[orderID]; ok {
		return false, nil
	}
	d.seen[orderID] = struct{}{}
	return true, nil
}

const (
	// dedupKey is keyed per order; the value is irrelevant, only SETNX wins.
	dedupKey = "autoaccept:scheduled:%s"
	dedupTTL = 24 * time.Hour
)

// RedisDedup coordinates scheduling across multiple API instances observing
// the same restaurant: only the SETNX winner schedules the delayed confirm.
type RedisDedup struct {
	client *redis.Client
}

func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

func (d *RedisDedup) TryAcquire(ctx context.Context, orderID types.ID) (bool, error) {
	key := fmt.Sprintf(dedupKey, orderID)
	return d.client.SetNX(ctx, key, "1", dedupTTL).Result()
}
