package quota

import (
	"context"

	"finsight/internal/adapters/redis"
	"finsight/pkg/errors"
)

const redisStateKey = "quota:state"

// RedisStore keeps usage counters in Redis so multiple pods share one
// budget. State is stored as a single JSON blob; the gate's mutex makes
// save-after-mutate safe within a process, and the deployment must run a
// single gate owner (or accept last-writer-wins) across processes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed quota store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads usage state from Redis. A missing key yields an empty state.
func (s *RedisStore) Load(ctx context.Context) (State, error) {
	var state State
	if err := s.client.Get(ctx, redisStateKey, &state); err != nil {
		if redis.IsNil(err) {
			return NewState(), nil
		}
		return NewState(), errors.Wrap(err, "load quota state from redis")
	}

	if state.Daily == nil {
		state.Daily = make(map[string]int)
	}
	if state.Hourly == nil {
		state.Hourly = make(map[string]int)
	}

	return state, nil
}

// Save writes usage state to Redis. Hourly windows age out of the state
// within 24h and daily within 7 days, so the blob stays bounded; the key
// itself is kept without TTL.
func (s *RedisStore) Save(ctx context.Context, state State) error {
	if err := s.client.Set(ctx, redisStateKey, state, 0); err != nil {
		return errors.Wrap(err, "save quota state to redis")
	}
	return nil
}
