package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// cleanupInterval is the interval between expired entry sweeps.
const cleanupInterval = 5 * time.Minute

// expiringItem wraps serialized data with an expiration time for TTL support.
type expiringItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// isExpired checks if the item has expired. A zero ExpiresAt never expires.
func (e *expiringItem) isExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// MemoryStore is an in-memory implementation of Store used when Redis is
// unreachable or not configured. Values are kept JSON-encoded so Get and Set
// behave exactly like the Redis-backed store, and a background goroutine
// sweeps expired entries.
type MemoryStore struct {
	entries       map[string]*expiringItem
	logger        *logrus.Logger
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewMemoryStore creates a new in-memory store with TTL cleanup.
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	store := &MemoryStore{
		entries:       make(map[string]*expiringItem),
		logger:        logger,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
	}

	go store.cleanupExpiredItems()

	logger.Info("In-memory cache initialized with TTL cleanup")
	return store
}

// cleanupExpiredItems runs periodically to remove expired entries.
func (m *MemoryStore) cleanupExpiredItems() {
	defer m.cleanupTicker.Stop()

	for {
		select {
		case <-m.cleanupTicker.C:
			m.performCleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired entries.
func (m *MemoryStore) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, item := range m.entries {
		if !item.ExpiresAt.IsZero() && now.After(item.ExpiresAt) {
			delete(m.entries, key)
			expired++
		}
	}

	if expired > 0 {
		m.logger.WithField("expired_items", expired).Debug("Cleaned up expired cache entries")
	}
}

// Get unmarshals the live value stored under key into dest.
func (m *MemoryStore) Get(_ context.Context, key string, dest any) bool {
	m.mu.RLock()
	item, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists || item.isExpired() {
		return false
	}

	if err := json.Unmarshal(item.Data, dest); err != nil {
		m.logger.WithError(err).WithField("key", key).Warn("Cache entry unmarshal failed, treating as miss")
		return false
	}
	return true
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// the value without expiration.
func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		m.logger.WithError(err).WithField("key", key).Warn("Cache value marshal failed")
		return false
	}

	item := &expiringItem{Data: data}
	if ttl > 0 {
		item.ExpiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = item
	m.mu.Unlock()
	return true
}

// Delete removes key from the store.
func (m *MemoryStore) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return true
}

// Exists reports whether a live value is stored under key.
func (m *MemoryStore) Exists(_ context.Context, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.entries[key]
	return exists && !item.isExpired()
}

// Invalidate removes all keys matching a glob-style pattern. Patterns use
// the same star and question-mark wildcards as Redis key patterns.
func (m *MemoryStore) Invalidate(_ context.Context, pattern string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			m.logger.WithError(err).WithField("pattern", pattern).Warn("Invalid cache invalidation pattern")
			return false
		}
		if matched {
			delete(m.entries, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"keys":    removed,
		}).Debug("Cache keys invalidated")
	}
	return true
}

// IsAvailable always answers true, memory never becomes unreachable.
func (m *MemoryStore) IsAvailable() bool { return true }

// Ping always returns nil for the memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close shuts down the cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopCleanup)
	})
	m.logger.Info("In-memory cache closed")
	return nil
}
