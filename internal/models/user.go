package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the persistent user record. It is the source of truth for the
// provider tokens; sessions denormalize the profile fields for fast access.
type User struct {
	ID           uuid.UUID  `json:"id"`
	SpotifyID    string     `json:"spotifyId"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	ProfileImage string     `json:"profileImage,omitempty"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TokenValid reports whether the stored provider access token is present and
// not yet expired.
func (u *User) TokenValid(now time.Time) bool {
	return u.AccessToken != "" && u.TokenExpiry != nil && now.Before(*u.TokenExpiry)
}

// Session is the cached session record keyed by user ID. It is not a source
// of truth: the persistent user record is authoritative for credentials. The
// lifetime is bounded by a sliding TTL refreshed on each authenticated
// request.
type Session struct {
	UserID      uuid.UUID `json:"userId"`
	SpotifyID   string    `json:"spotifyId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	// Provider tokens ride on the session so personal endpoints keep
	// working when the user row is unreachable. Sessions live only in
	// the server-side store; these never reach the browser.
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
	LastActivity time.Time  `json:"lastActivity"`
}

// Principal is the authenticated identity attached to a request context by
// the auth gate.
type Principal struct {
	UserID      uuid.UUID
	SpotifyID   string
	Email       string
	DisplayName string
}
