package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "blob:"

// RedisStore keeps blobs as plain string values keyed by digest.
type RedisStore struct {
	client *redis.Client
}

var _ store.BlobStore = (*RedisStore)(nil)

func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Save(ctx context.Context, data []byte) (string, error) {
	handle := Handle(data)
	d, _ := digest(handle)
	// Content addressed: an existing key already holds the same bytes.
	if err := s.client.SetNX(ctx, redisKeyPrefix+d, data, 0).Err(); err != nil {
		return "", fmt.Errorf("redis set blob: %w", err)
	}
	return handle, nil
}

func (s *RedisStore) Load(ctx context.Context, handle string) ([]byte, error) {
	d, err := digest(handle)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, redisKeyPrefix+d).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: blob %s", model.ErrNotFound, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get blob: %w", err)
	}
	return data, nil
}
