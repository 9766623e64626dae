// Package spotify provides the outbound client for the Spotify Web API:
// the user-facing OAuth authorization-code flow, an application token for
// public catalog lookups, and JSON API calls with read-through caching.
package spotify

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/Luuchoh/SpotifyScope/internal/config"
)

// Endpoint is the provider's OAuth2 endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// Authenticator handles the user authorization-code flow. Access and
// refresh tokens obtained here are stored server side only.
type Authenticator struct {
	oauth *oauth2.Config
}

// NewAuthenticator builds an Authenticator from application credentials.
// The endpoint parameter exists so tests can point at a local server.
func NewAuthenticator(cfg *config.SpotifyConfig, endpoint oauth2.Endpoint) *Authenticator {
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
	}
}

// AuthCodeURL returns the provider login URL carrying the given state.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for an access/refresh token
// pair.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// Refresh obtains a fresh access token from a stored refresh token. The
// provider may rotate the refresh token, callers must persist the returned
// pair.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh provider token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}
