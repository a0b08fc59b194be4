package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garnizeh/recruit/pkg/models"
)

const redisKeyPrefix = "otp:"

// RedisStore keeps outstanding codes in redis, one hash per email with a TTL
// matching the code's expiry.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) SaveCode(ctx context.Context, c *models.OTPCode) error {
	key := redisKeyPrefix + c.Email
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code_hash", c.CodeHash,
			"expires_at", c.ExpiresAt.UnixMilli(),
			"attempts", c.Attempts,
		)
		p.PExpireAt(ctx, key, c.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save code: %w", err)
	}
	return nil
}

func (s *RedisStore) GetCode(ctx context.Context, email string) (*models.OTPCode, error) {
	vals, err := s.rdb.HGetAll(ctx, redisKeyPrefix+email).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get code: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	exp, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis get code: bad expires_at: %w", err)
	}
	attempts, _ := strconv.Atoi(vals["attempts"])
	return &models.OTPCode{
		Email:     email,
		CodeHash:  vals["code_hash"],
		ExpiresAt: time.UnixMilli(exp),
		Attempts:  attempts,
	}, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, email string) error {
	if err := s.rdb.HIncrBy(ctx, redisKeyPrefix+email, "attempts", 1).Err(); err != nil {
		return fmt.Errorf("redis increment attempts: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteCode(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("redis delete code: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: redis expires the keys itself.
func (s *RedisStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
