package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/auth"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/middleware"
	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// authErrorPath is where the browser lands when the callback fails.
const authErrorPath = "/auth/error"

// AuthHandler exposes the login flow and session endpoints.
type AuthHandler struct {
	auth   auth.Service
	config *config.Config
	logger *logrus.Logger
}

// NewAuthHandler creates the authentication endpoint handler.
func NewAuthHandler(svc auth.Service, cfg *config.Config, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   svc,
		config: cfg,
		logger: logger,
	}
}

// Login starts the OAuth flow and returns the provider authorization URL.
//
//	POST /api/auth/spotify/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.auth.LoginURL(r.Context())
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, map[string]string{"authUrl": authURL})
}

// Callback completes the OAuth flow. On success it sets the http-only
// session cookie and redirects to the frontend dashboard; on failure it
// redirects to the frontend error page with the error code.
//
//	GET /api/auth/spotify/callback?code=...&state=...
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.auth.HandleCallback(r.Context(), query.Get("code"), query.Get("state"))
	if err != nil {
		h.logger.WithError(err).Warn("OAuth callback failed")
		h.redirectWithError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.SessionToken, result.SessionExpiry))
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Logout destroys the session and clears the cookie.
//
//	POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, models.NewUnauthorized("authentication required"), h.config.IsDevelopment())
		return
	}

	if err := h.auth.Logout(r.Context(), principal.UserID); err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	http.SetCookie(w, h.expiredSessionCookie())
	writeJSON(w, h.logger, map[string]string{"message": "Logged out successfully"})
}

// Profile returns the authenticated user's profile.
//
//	GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, models.NewUnauthorized("authentication required"), h.config.IsDevelopment())
		return
	}

	user, err := h.auth.Profile(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, user)
}

// Refresh forces a provider token refresh for the authenticated user.
//
//	POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, models.NewUnauthorized("authentication required"), h.config.IsDevelopment())
		return
	}

	expiry, err := h.auth.ForceRefresh(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, map[string]any{
		"message":     "Provider token refreshed",
		"tokenExpiry": expiry,
	})
}

func (h *AuthHandler) sessionCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   !h.config.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) expiredSessionCookie() *http.Cookie {
	cookie := h.sessionCookie("", 0)
	cookie.MaxAge = -1
	return cookie
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := models.AsAPIError(err)

	target := h.config.Spotify.FrontendURL + authErrorPath + "?error=" + url.QueryEscape(apiErr.Code)
	http.Redirect(w, r, target, http.StatusFound)
}
