// Package token provides signed session token generation and validation.
// Session tokens are JWTs issued after a successful Spotify OAuth exchange
// and carried by the browser in an httpOnly cookie. They identify the user
// to this service only, Spotify access tokens never leave the backend.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/models"
)

const sessionTokenType = "session"

var (
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenInvalid indicates a malformed, tampered, or mistyped token.
	ErrTokenInvalid = errors.New("session token invalid")
)

// Service defines session token operations.
type Service interface {
	// Issue creates a signed session token for the given user.
	Issue(user *models.User) (string, error)

	// Validate verifies a session token and returns its claims. Expired
	// tokens return ErrTokenExpired, all other failures ErrTokenInvalid,
	// so callers can distinguish a lapsed session from a forged token.
	Validate(tokenString string) (*Claims, error)
}

// Claims is the session token claim set. UserID doubles as the registered
// subject claim.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string `json:"user_id"`
	SpotifyID   string `json:"spotify_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Type        string `json:"type"`
}

// JWTService implements Service using HMAC-signed JWTs.
type JWTService struct {
	config *config.JWTConfig
}

// NewJWTService creates a new session token service.
func NewJWTService(cfg *config.JWTConfig) Service {
	return &JWTService{config: cfg}
}

// Issue creates a signed session token for the given user.
func (s *JWTService) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID:      user.ID.String(),
		SpotifyID:   user.SpotifyID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Type:        sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.SessionExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(s.config.Algorithm), claims)

	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a session token and returns its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.GetSigningMethod(s.config.Algorithm) {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Type != sessionTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.Type)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: malformed user id", ErrTokenInvalid)
	}

	return claims, nil
}

// UserUUID returns the user ID claim as a UUID. Validate guarantees the
// claim parses, so the error is discarded.
func (c *Claims) UserUUID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}
