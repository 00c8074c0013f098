package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vcflow/internal/sentinel"
)

// Redis keeps all records of one namespace in a single Redis hash, so List and
// Clear are one round trip each. There is no TTL, matching the in-memory store.
type Redis[T any] struct {
	client *redis.Client
	key    string
}

// NewRedis stores records under the hash "vcflow:<namespace>".
func NewRedis[T any](client *redis.Client, namespace string) *Redis[T] {
	return &Redis[T]{client: client, key: "vcflow:" + namespace}
}

func (r *Redis[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, sentinel.ErrNotFound
		}
		return out, fmt.Errorf("redis hget %s: %w", r.key, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", r.key, id, err)
	}
	return out, nil
}

func (r *Redis[T]) Set(ctx context.Context, id string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.key, id, err)
	}
	if err := r.client.HSet(ctx, r.key, id, data).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis[T]) Delete(ctx context.Context, id string) error {
	n, err := r.client.HDel(ctx, r.key, id).Result()
	if err != nil {
		return fmt.Errorf("redis hdel %s: %w", r.key, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r *Redis[T]) List(ctx context.Context) ([]T, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	out := make([]T, 0, len(all))
	for id, data := range all {
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", r.key, id, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Redis[T]) Clear(ctx context.Context) (int, error) {
	var n *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.HLen(ctx, r.key)
		pipe.Del(ctx, r.key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis clear %s: %w", r.key, err)
	}
	return int(n.Val()), nil
}

var _ Store[string] = (*Redis[string])(nil)
