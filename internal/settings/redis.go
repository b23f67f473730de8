package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "settings:"

// RedisStore keeps each document as a hash; every field value is JSON encoded.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client. The store owns the client from then on.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStore(client), nil
}

// Read implements Store.
func (r *RedisStore) Read(ctx context.Context, name string) (Document, error) {
	fields, err := r.client.HGetAll(ctx, redisKeyPrefix+name).Result()
	if err != nil {
		return nil, fmt.Errorf("reading settings %q: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	doc := make(Document, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding settings %q field %s: %w", name, k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

// Write implements Store.
func (r *RedisStore) Write(ctx context.Context, name string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding settings %q field %s: %w", name, k, err)
		}
		values[k] = string(data)
	}
	if err := r.client.HSet(ctx, redisKeyPrefix+name, values).Err(); err != nil {
		return fmt.Errorf("writing settings %q: %w", name, err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
