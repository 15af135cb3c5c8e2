package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "notely"

// RedisBackend keeps each namespace under <prefix>:<namespace>.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *RedisBackend {
	if client == nil {
		panic("storage.NewRedis: client is nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(namespace string) string {
	return b.prefix + ":" + namespace
}

func (b *RedisBackend) Get(ctx context.Context, namespace string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoData
	}
	return data, err
}

func (b *RedisBackend) Put(ctx context.Context, namespace string, data []byte) error {
	return b.client.Set(ctx, b.key(namespace), data, 0).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, namespace string) error {
	return b.client.Del(ctx, b.key(namespace)).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
