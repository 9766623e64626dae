package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Luuchoh/SpotifyScope/internal/config"
)

// tokenExpiryBuffer is subtracted from the reported token lifetime so a
// token is never used within moments of expiring.
const tokenExpiryBuffer = 5 * time.Minute

// TokenManager supplies the application access token used for public
// catalog lookups that need no user authorization.
type TokenManager interface {
	// Token returns a valid application token, requesting a new one when
	// the cached token is missing or near expiry.
	Token(ctx context.Context) (string, error)
	// Invalidate forces a new token request on the next Token call.
	Invalidate()
}

type tokenManager struct {
	mu     sync.RWMutex
	cc     clientcredentials.Config
	logger *logrus.Logger

	accessToken string
	expiresAt   time.Time
}

// NewTokenManager creates a TokenManager using the client-credentials
// grant. The tokenURL parameter exists so tests can point at a local
// server.
func NewTokenManager(cfg *config.SpotifyConfig, tokenURL string, logger *logrus.Logger) TokenManager {
	return &tokenManager{
		cc: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		},
		logger: logger,
	}
}

// Token returns a valid application token, refreshing if necessary. It uses
// a read lock for cached tokens and upgrades to a write lock for refresh,
// so concurrent callers trigger at most one provider request.
func (t *tokenManager) Token(ctx context.Context) (string, error) {
	t.mu.RLock()
	if t.accessToken != "" && time.Now().Before(t.expiresAt) {
		tok := t.accessToken
		t.mu.RUnlock()
		return tok, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if t.accessToken != "" && time.Now().Before(t.expiresAt) {
		return t.accessToken, nil
	}

	tok, err := t.cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain application token: %w", err)
	}

	expiresAt := tok.Expiry
	if !expiresAt.IsZero() && time.Until(expiresAt) > tokenExpiryBuffer {
		expiresAt = expiresAt.Add(-tokenExpiryBuffer)
	}

	t.accessToken = tok.AccessToken
	t.expiresAt = expiresAt

	t.logger.WithField("expires_at", t.expiresAt).Debug("Application token refreshed")
	return t.accessToken, nil
}

// Invalidate forces the cached token to be refreshed on the next Token call.
func (t *tokenManager) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accessToken = ""
	t.expiresAt = time.Time{}

	t.logger.Debug("Application token invalidated, will refresh on next request")
}
