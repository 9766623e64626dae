package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuchoh/SpotifyScope/internal/auth"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/handlers"
	"github.com/Luuchoh/SpotifyScope/internal/middleware"
	"github.com/Luuchoh/SpotifyScope/internal/models"
)

type fakeAuthService struct {
	loginURL       string
	loginErr       error
	callbackResult *auth.CallbackResult
	callbackErr    error
	loggedOut      []uuid.UUID
	profileUser    *models.User
	profileErr     error
	refreshExpiry  time.Time
	refreshErr     error
}

func (f *fakeAuthService) LoginURL(ctx context.Context) (string, error) {
	return f.loginURL, f.loginErr
}

func (f *fakeAuthService) HandleCallback(ctx context.Context, code, state string) (*auth.CallbackResult, error) {
	return f.callbackResult, f.callbackErr
}

func (f *fakeAuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	f.loggedOut = append(f.loggedOut, userID)
	return nil
}

func (f *fakeAuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return f.profileUser, f.profileErr
}

func (f *fakeAuthService) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return "", nil
}

func (f *fakeAuthService) ForceRefresh(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	return f.refreshExpiry, f.refreshErr
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: config.EnvironmentConfig{Environment: config.Local},
		Spotify: config.SpotifyConfig{
			FrontendURL: "http://localhost:3000",
		},
	}
}

func newAuthHandler(svc auth.Service) *handlers.AuthHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return handlers.NewAuthHandler(svc, testConfig(), logger)
}

func withPrincipal(r *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithPrincipal(r.Context(), &models.Principal{
		UserID:    userID,
		SpotifyID: "spotify-user-1",
	})
	return r.WithContext(ctx)
}

func TestLoginReturnsAuthURL(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{loginURL: "https://accounts.spotify.com/authorize?state=abc"})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/spotify/login", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://accounts.spotify.com/authorize?state=abc", body["authUrl"])
}

func TestCallbackSetsCookieAndRedirects(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{callbackResult: &auth.CallbackResult{
		RedirectURL:   "http://localhost:3000/dashboard?auth=success",
		SessionToken:  "session-jwt",
		SessionExpiry: time.Hour,
		User:          &models.User{ID: uuid.New()},
	}})

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/auth/spotify/callback?code=c&state=s", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:3000/dashboard?auth=success", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
	assert.Equal(t, "session-jwt", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), cookies[0].MaxAge)
}

func TestCallbackFailureRedirectsToErrorPage(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{callbackErr: models.NewUnauthorized("invalid or expired login state")})

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/auth/spotify/callback?code=c&state=bad", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:3000/auth/error?error=UNAUTHORIZED", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	svc := &fakeAuthService{}
	h := newAuthHandler(svc)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), userID)
	h.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{userID}, svc.loggedOut)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLogoutWithoutPrincipal(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{})

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileReturnsUser(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{profileUser: &models.User{
		ID:          uuid.New(),
		SpotifyID:   "spotify-user-1",
		DisplayName: "Test Listener",
	}})

	rec := httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), uuid.New())
	h.Profile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "Test Listener", user.DisplayName)
}

func TestProfileNotFound(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{profileErr: models.NewUserNotFound()})

	rec := httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), uuid.New())
	h.Profile(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshReturnsNewExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC()
	h := newAuthHandler(&fakeAuthService{refreshExpiry: expiry})

	rec := httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), uuid.New())
	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["tokenExpiry"])
}

func TestRefreshSessionExpired(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{refreshErr: models.NewSessionExpired()})

	rec := httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), uuid.New())
	h.Refresh(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, models.CodeSessionExpired, apiErr.Code)
}
