package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/token"
)

// Authenticate gates protected routes. It accepts the session JWT from the
// http-only cookie or an Authorization bearer header, validates it, and
// requires a live session record in the cache. On success the authenticated
// principal is attached to the request context and the session TTL slides
// forward.
func (m *Stack) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := sessionTokenFromRequest(r)
		if raw == "" {
			m.writeError(w, models.NewUnauthorized("authentication required"))
			return
		}

		claims, err := m.tokens.Validate(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				m.writeError(w, models.NewSessionExpired())
			case errors.Is(err, token.ErrTokenInvalid):
				m.writeError(w, models.NewInvalidToken())
			default:
				m.logger.WithError(err).Error("Session token validation failed")
				m.writeError(w, models.NewInternalError("failed to validate session"))
			}
			return
		}

		userID := claims.UserUUID()

		session, ok := m.cache.GetSession(r.Context(), userID)
		if !ok {
			// A miss from a healthy store means the session lapsed; a
			// store outage must not masquerade as a logout.
			if pingErr := m.cache.Store().Ping(r.Context()); pingErr != nil {
				m.logger.WithError(pingErr).Error("Session store unreachable")
				m.writeError(w, models.NewInternalError("failed to verify session"))
				return
			}
			m.writeError(w, models.NewSessionExpired())
			return
		}

		session.LastActivity = time.Now().UTC()
		m.cache.SetSession(r.Context(), session)

		principal := &models.Principal{
			UserID:      userID,
			SpotifyID:   claims.SpotifyID,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// sessionTokenFromRequest extracts the session JWT from the cookie or, as a
// fallback for non-browser clients, the Authorization header.
func sessionTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get(constants.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*models.Principal)
	return principal, ok
}

// RequestIDFromContext returns the request ID assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
