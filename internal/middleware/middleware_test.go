package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/middleware"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/token"
)

type fixture struct {
	stack  *middleware.Stack
	facade *cache.Facade
	tokens token.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := cache.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })
	facade := cache.NewFacade(store, logger)

	cfg := &config.Config{
		Security: config.SecurityConfig{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           600,
			RateLimitRPS:     10,
		},
		JWT: config.JWTConfig{
			Secret:        strings.Repeat("s", 32),
			SessionExpiry: time.Hour,
			Issuer:        "spotifyscope",
			Algorithm:     "HS256",
		},
	}

	tokens := token.NewJWTService(&cfg.JWT)
	return &fixture{
		stack:  middleware.NewStack(cfg, facade, tokens, nil, logger),
		facade: facade,
		tokens: tokens,
	}
}

// loggedIn issues a session token and seeds the matching session record.
func (fx *fixture) loggedIn(t *testing.T) (uuid.UUID, string) {
	t.Helper()

	user := &models.User{
		ID:          uuid.New(),
		SpotifyID:   "spotify-user-1",
		DisplayName: "Test Listener",
	}
	raw, err := fx.tokens.Issue(user)
	require.NoError(t, err)

	fx.facade.SetSession(context.Background(), &models.Session{
		UserID:       user.ID,
		SpotifyID:    user.SpotifyID,
		DisplayName:  user.DisplayName,
		LastActivity: time.Now().UTC(),
	})
	return user.ID, raw
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *models.APIError {
	t.Helper()
	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return &apiErr
}

func TestChainAppliesOutermostFirst(t *testing.T) {
	fx := newFixture(t)

	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := fx.stack.Chain(okHandler(), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	fx := newFixture(t)

	rec := httptest.NewRecorder()
	fx.stack.RequestLogger(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/top-tracks", nil))

	assert.NotEmpty(t, rec.Header().Get(constants.HeaderXRequestID))
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/top-tracks", nil)
	req.Header.Set(constants.HeaderXRequestID, "client-supplied")

	rec := httptest.NewRecorder()
	fx.stack.RequestLogger(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied", rec.Header().Get(constants.HeaderXRequestID))
}

func TestRequestLoggerSkipsHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	store := cache.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })
	stack := middleware.NewStack(&config.Config{}, cache.NewFacade(store, logger), nil, nil, logger)
	buf.Reset() // drop construction-time log lines; only request logging is under test

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		stack.RequestLogger(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.Zero(t, buf.Len(), "probe to %s should not be logged", path)
	}

	stack.RequestLogger(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/music/search/tracks", nil))
	assert.NotZero(t, buf.Len())
}

func TestCORSPreflight(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/user/analytics", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	rec := httptest.NewRecorder()
	fx.stack.CORS(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSUnknownOrigin(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.Header.Set("Origin", "http://evil.example.com")

	rec := httptest.NewRecorder()
	fx.stack.CORS(okHandler()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	fx := newFixture(t)

	rec := httptest.NewRecorder()
	fx.stack.SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRecoveryTurnsPanicIntoInternalError(t *testing.T) {
	fx := newFixture(t)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	fx.stack.Recovery(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.CodeInternalError, decodeError(t, rec).Code)
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	fx := newFixture(t)

	rec := httptest.NewRecorder()
	fx.stack.RateLimit(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/tracks", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejectsMissingCredential(t *testing.T) {
	fx := newFixture(t)

	rec := httptest.NewRecorder()
	fx.stack.Authenticate(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.CodeUnauthorized, decodeError(t, rec).Code)
}

func TestAuthenticateRejectsMalformedToken(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "not-a-jwt"})

	rec := httptest.NewRecorder()
	fx.stack.Authenticate(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.CodeInvalidToken, decodeError(t, rec).Code)
}

func TestAuthenticateRejectsMissingSession(t *testing.T) {
	fx := newFixture(t)

	raw, err := fx.tokens.Issue(&models.User{ID: uuid.New(), SpotifyID: "ghost"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: raw})

	rec := httptest.NewRecorder()
	fx.stack.Authenticate(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.CodeSessionExpired, decodeError(t, rec).Code)
}

func TestAuthenticateAttachesPrincipal(t *testing.T) {
	fx := newFixture(t)
	userID, raw := fx.loggedIn(t)

	var got *models.Principal
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = middleware.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: raw})

	rec := httptest.NewRecorder()
	fx.stack.Authenticate(capture).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "spotify-user-1", got.SpotifyID)
}

func TestAuthenticateAcceptsBearerHeader(t *testing.T) {
	fx := newFixture(t)
	_, raw := fx.loggedIn(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+raw)

	rec := httptest.NewRecorder()
	fx.stack.Authenticate(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateSlidesSessionActivity(t *testing.T) {
	fx := newFixture(t)
	userID, raw := fx.loggedIn(t)

	before, ok := fx.facade.GetSession(context.Background(), userID)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/user/analytics", nil)
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: raw})
	fx.stack.Authenticate(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	after, ok := fx.facade.GetSession(context.Background(), userID)
	require.True(t, ok)
	assert.True(t, after.LastActivity.After(before.LastActivity))
}

func TestPrincipalFromContextWithoutPrincipal(t *testing.T) {
	_, ok := middleware.PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
