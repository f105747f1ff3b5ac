package assembler

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keys for the two external order-id sets, maintained by the
// import jobs.
const (
	cancelledSetKey  = "fulfillment:cancelled"
	dispatchedSetKey = "fulfillment:dispatched"
)

// RedisSets reads the cancelled/dispatched order-id sets from Redis.
type RedisSets struct {
	client *redis.Client
}

func NewRedisSets(client *redis.Client) *RedisSets {
	return &RedisSets{client: client}
}

func (s *RedisSets) CancelledOrders(ctx context.Context) (map[string]struct{}, error) {
	return s.members(ctx, cancelledSetKey)
}

func (s *RedisSets) DispatchedOrders(ctx context.Context) (map[string]struct{}, error) {
	return s.members(ctx, dispatchedSetKey)
}

func (s *RedisSets) members(ctx context.Context, key string) (map[string]struct{}, error) {
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("status sets: failed to read %s: %w", key, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set, nil
}
