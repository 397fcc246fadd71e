package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

const (
	cacheNamespace = "ace-lms:"
	scanBatch      = 100
)

// CacheRepository keeps JSON encoded summaries and dashboards in Redis. Every key is
// prefixed with the ace-lms namespace. A nil client turns reads into misses and writes into no-ops.
type CacheRepository struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewCacheRepository(client redis.UniversalClient, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger.Named("redis")}
}

func (r *CacheRepository) disabled() bool {
	return r == nil || r.client == nil
}

// Get decodes the entry under key into dest. Absent and corrupt entries both report
// appErrors.ErrCacheMiss; corrupt ones are removed.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.disabled() {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, cacheNamespace+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("evicting undecodable entry", zap.String("key", key), zap.Error(err))
		r.client.Unlink(ctx, cacheNamespace+key)
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.disabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return wrapRedis("set", key, r.client.Set(ctx, cacheNamespace+key, payload, ttl).Err())
}

// DeleteByPattern scans for keys matching the glob pattern and unlinks them one batch at a time.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.disabled() {
		return nil
	}
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, cacheNamespace+pattern, scanBatch).Result()
		if err != nil {
			return wrapRedis("scan", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return wrapRedis("unlink", pattern, err)
			}
			removed += len(keys)
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	r.logger.Debug("invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	return nil
}

func (r *CacheRepository) Close() error {
	if r.disabled() {
		return nil
	}
	return r.client.Close()
}

func wrapRedis(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}
