package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/config"
)

// scanBatchSize bounds SCAN page sizes and DEL batches during pattern
// invalidation.
const scanBatchSize = 100

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotifyscope_cache_operations_total",
		Help: "Total number of cache operations by result",
	}, []string{"operation", "result"})
)

// RedisStore implements Store on top of a Redis connection pool. Backing
// store failures are logged at Warn and surfaced to callers only as cache
// misses, keeping the facade's never-fail contract.
type RedisStore struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewRedisStore connects to Redis using the provided configuration and
// verifies connectivity with a ping. Callers fall back to the in-memory
// store when an error is returned.
func NewRedisStore(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConn
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", pingErr)
	}

	logger.WithField("url", cfg.URL).Info("Connected to Redis cache")
	return &RedisStore{rdb: rdb, logger: logger}, nil
}

// Client exposes the underlying Redis client for components that need it
// directly, such as the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.rdb
}

// Get unmarshals the value stored under key into dest. Any failure,
// including a deserialization error from a stale entry, resolves to a miss.
func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).WithField("key", key).Warn("Cache get failed")
		}
		cacheHits.WithLabelValues("get", "miss").Inc()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache entry unmarshal failed, treating as miss")
		cacheHits.WithLabelValues("get", "miss").Inc()
		return false
	}

	cacheHits.WithLabelValues("get", "hit").Inc()
	return true
}

// Set stores value under key with the given TTL. Failure is logged, not
// propagated.
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache value marshal failed")
		return false
	}

	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache set failed")
		cacheHits.WithLabelValues("set", "error").Inc()
		return false
	}

	cacheHits.WithLabelValues("set", "ok").Inc()
	return true
}

// Delete removes key. Deleting a missing key is not a failure.
func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache delete failed")
		return false
	}
	return true
}

// Exists reports whether a live value is stored under key.
func (s *RedisStore) Exists(ctx context.Context, key string) bool {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache exists check failed")
		return false
	}
	return n == 1
}

// Invalidate removes all keys matching a glob-style pattern using SCAN to
// avoid blocking the server, then deletes the collected keys in batches.
func (s *RedisStore) Invalidate(ctx context.Context, pattern string) bool {
	var keys []string
	var cursor uint64

	for {
		page, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			s.logger.WithError(err).WithField("pattern", pattern).Warn("Cache scan failed")
			return false
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return true
	}

	for i := 0; i < len(keys); i += scanBatchSize {
		end := i + scanBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.rdb.Del(ctx, keys[i:end]...).Err(); err != nil {
			s.logger.WithError(err).WithField("pattern", pattern).Warn("Cache pattern delete failed")
			return false
		}
	}

	s.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"keys":    len(keys),
	}).Debug("Cache keys invalidated")
	return true
}

// IsAvailable always answers true for a connected Redis store; transient
// failures degrade individual operations instead.
func (s *RedisStore) IsAvailable() bool { return true }

// Ping verifies connectivity to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close gracefully closes the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
