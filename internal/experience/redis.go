package experience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region redis-store

// RedisStore keeps each experience as JSON under prefix+id and indexes ids in a
// sorted set scored by reward.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration of stored experiences. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects to Redis at address.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

// NewRedisStoreFromClient creates a store over an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "reasoner:experience:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "by_reward"
}

// #endregion redis-store

// #region save

// Save writes the JSON payload and indexes it by reward in one pipeline.
func (s *RedisStore) Save(ctx context.Context, exp state.Experience) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experience: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(exp.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(exp.Reward),
		Member: exp.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("save to redis", err)
	}
	return nil
}

// #endregion save

// #region load

// LoadTop reads the n best ids from the index and fetches their payloads.
// Index entries whose payload expired are pruned.
func (s *RedisStore) LoadTop(ctx context.Context, n int) ([]state.Experience, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, unavailable("read reward index", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("fetch experiences", err)
	}

	out := make([]state.Experience, 0, len(vals))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var exp state.Experience
		if err := json.Unmarshal([]byte(raw), &exp); err != nil {
			return nil, fmt.Errorf("unmarshal experience %s: %w", ids[i], err)
		}
		out = append(out, exp)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, unavailable("prune reward index", err)
		}
	}
	return out, nil
}

// Get reads one experience by id.
func (s *RedisStore) Get(ctx context.Context, id string) (state.Experience, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, backend.Nil) {
		return state.Experience{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return state.Experience{}, unavailable("get from redis", err)
	}
	var exp state.Experience
	if err := json.Unmarshal([]byte(val), &exp); err != nil {
		return state.Experience{}, fmt.Errorf("unmarshal experience: %w", err)
	}
	return exp, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// #endregion load
