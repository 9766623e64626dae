package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// Facade provides typed, namespaced access to the cache for the rest of the
// service. All operations inherit the Store's best-effort contract, a cache
// outage degrades to misses rather than request failures.
type Facade struct {
	store  Store
	logger *logrus.Logger
}

// NewFacade wraps a Store with the service's key namespaces and TTL policy.
func NewFacade(store Store, logger *logrus.Logger) *Facade {
	return &Facade{store: store, logger: logger}
}

// Store exposes the underlying store for health checks and shutdown.
func (f *Facade) Store() Store { return f.store }

// ProviderKey builds a deterministic key for a provider API response. Params
// are sorted by name so equivalent requests share an entry, and long
// parameter sets are hashed to keep keys bounded.
func ProviderKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return fmt.Sprintf("spotify:%s", endpoint)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+params[name])
	}
	joined := strings.Join(parts, "&")

	if len(joined) > 128 {
		sum := sha256.Sum256([]byte(joined))
		joined = hex.EncodeToString(sum[:16])
	}

	return fmt.Sprintf("spotify:%s:%s", endpoint, joined)
}

// analyticsKey builds the per-user analytics snapshot key. An empty time
// range collapses to the literal "all" segment.
func analyticsKey(userID uuid.UUID, dataType string, timeRange models.TimeRange) string {
	segment := string(timeRange)
	if segment == "" {
		segment = "all"
	}
	return fmt.Sprintf("analytics:%s:%s:%s", userID, dataType, segment)
}

func sessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("session:%s", userID)
}

func oauthStateKey(state string) string {
	return fmt.Sprintf("auth:state:%s", state)
}

// GetProviderData loads a cached provider response into dest.
func (f *Facade) GetProviderData(ctx context.Context, endpoint string, params map[string]string, dest any) bool {
	return f.store.Get(ctx, ProviderKey(endpoint, params), dest)
}

// SetProviderData caches a provider response for the provider data TTL.
func (f *Facade) SetProviderData(ctx context.Context, endpoint string, params map[string]string, value any) {
	f.store.Set(ctx, ProviderKey(endpoint, params), value, ProviderDataTTL)
}

// GetUserAnalytics loads a cached analytics result into dest.
func (f *Facade) GetUserAnalytics(
	ctx context.Context,
	userID uuid.UUID,
	dataType string,
	timeRange models.TimeRange,
	dest any,
) bool {
	return f.store.Get(ctx, analyticsKey(userID, dataType, timeRange), dest)
}

// SetUserAnalytics caches a computed analytics result for the analytics TTL.
func (f *Facade) SetUserAnalytics(
	ctx context.Context,
	userID uuid.UUID,
	dataType string,
	timeRange models.TimeRange,
	value any,
) {
	f.store.Set(ctx, analyticsKey(userID, dataType, timeRange), value, UserAnalyticsTTL)
}

// GetSession loads a user's session if one is live.
func (f *Facade) GetSession(ctx context.Context, userID uuid.UUID) (*models.Session, bool) {
	var session models.Session
	if !f.store.Get(ctx, sessionKey(userID), &session) {
		return nil, false
	}
	return &session, true
}

// SetSession stores a session with the sliding session TTL. Called on every
// authenticated request so active users never expire mid-use.
func (f *Facade) SetSession(ctx context.Context, session *models.Session) {
	f.store.Set(ctx, sessionKey(session.UserID), session, SessionTTL)
}

// DeleteSession removes a user's session.
func (f *Facade) DeleteSession(ctx context.Context, userID uuid.UUID) {
	f.store.Delete(ctx, sessionKey(userID))
}

// SetOAuthState records a pending OAuth state token for later verification.
func (f *Facade) SetOAuthState(ctx context.Context, state string, redirectURI string) {
	f.store.Set(ctx, oauthStateKey(state), redirectURI, OAuthStateTTL)
}

// ConsumeOAuthState verifies and removes a pending OAuth state token in one
// step so a state can never be replayed.
func (f *Facade) ConsumeOAuthState(ctx context.Context, state string) (string, bool) {
	var redirectURI string
	key := oauthStateKey(state)
	if !f.store.Get(ctx, key, &redirectURI) {
		return "", false
	}
	f.store.Delete(ctx, key)
	return redirectURI, true
}

// ClearUserData removes every cached value tied to a user, the analytics
// namespace by pattern plus the session entry, whose key shape the pattern
// cannot reach.
func (f *Facade) ClearUserData(ctx context.Context, userID uuid.UUID) bool {
	ok := f.store.Invalidate(ctx, fmt.Sprintf("analytics:%s:*", userID))
	if !f.store.Delete(ctx, sessionKey(userID)) {
		ok = false
	}
	if !ok {
		f.logger.WithField("user_id", userID).Warn("Partial failure clearing user cache data")
	}
	return ok
}
