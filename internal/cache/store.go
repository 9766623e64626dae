// Package cache provides the best-effort key/value store used by every
// other component for memoization and session state. The facade must never
// cause caller failure: a failed backing store, a disabled store, or a
// deserialization error all resolve to a cache miss, never an error.
//
// Keys are namespaced strings organized by prefix:
//   - spotify:{endpoint}:{params} - raw provider lookups (1 hour TTL)
//   - analytics:{userID}:{dataType}:{timeRange} - computed analytics (6 hours)
//   - session:{userID} - user sessions (24 hours, sliding)
//   - auth:state:{state} - OAuth state values (10 minutes)
package cache

import (
	"context"
	"time"
)

// TTL policy by category. Tunable via the Set calls but these are the
// defaults the typed facade applies.
const (
	// ProviderDataTTL applies to raw provider API lookups.
	ProviderDataTTL = time.Hour
	// UserAnalyticsTTL applies to computed user analytics.
	UserAnalyticsTTL = 6 * time.Hour
	// SessionTTL applies to session records, refreshed on each
	// authenticated access (sliding expiration).
	SessionTTL = 24 * time.Hour
	// OAuthStateTTL applies to login state values awaiting the callback.
	OAuthStateTTL = 10 * time.Minute
)

// Store is the key/value abstraction backing the cache facade. All methods
// are safe for concurrent use and follow best-effort semantics: Get returns
// false on any failure, Set/Delete/Invalidate report success as a boolean
// and never propagate backing-store errors.
type Store interface {
	// Get unmarshals the value stored under key into dest and reports
	// whether a live value was found.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key with the given TTL and reports success.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool

	// Delete removes key and reports success. Deleting a missing key is
	// not a failure.
	Delete(ctx context.Context, key string) bool

	// Exists reports whether a live value is stored under key.
	Exists(ctx context.Context, key string) bool

	// Invalidate removes all keys matching a glob-style pattern and
	// reports success. Used to purge a user's cached state on logout.
	Invalidate(ctx context.Context, pattern string) bool

	// IsAvailable reports whether the backing store is usable. A disabled
	// store answers false and every read resolves to a miss.
	IsAvailable() bool

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases backing-store resources.
	Close() error
}

// Disabled is the no-op Store used when no backing store is configured.
// Every read is a miss and every write reports failure, which callers
// already tolerate.
type Disabled struct{}

// NewDisabled returns the always-miss store.
func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) Get(context.Context, string, any) bool                { return false }
func (*Disabled) Set(context.Context, string, any, time.Duration) bool { return false }
func (*Disabled) Delete(context.Context, string) bool                  { return false }
func (*Disabled) Exists(context.Context, string) bool                  { return false }
func (*Disabled) Invalidate(context.Context, string) bool              { return false }
func (*Disabled) IsAvailable() bool                                    { return false }
func (*Disabled) Ping(context.Context) error                           { return nil }
func (*Disabled) Close() error                                         { return nil }
