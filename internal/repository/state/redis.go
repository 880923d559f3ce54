package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medusa-storefront/internal/domain"
)

const keyPrefix = "storefront:state:"

type redisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) Repository {
	return &redisRepo{client: client, ttl: ttl}
}

func redisKey(sessionID, key string) string {
	return keyPrefix + sessionID + ":" + key
}

func (r *redisRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *redisRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *redisRepo) SetIfAbsent(ctx context.Context, sessionID, key string, value []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKey(sessionID, key), value, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *redisRepo) Delete(ctx context.Context, sessionID, key string) error {
	if err := r.client.Del(ctx, redisKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *redisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
