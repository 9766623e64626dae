// Package auth implements the Spotify login broker: the OAuth
// authorization-code flow, session establishment, provider token refresh,
// and logout. Provider credentials never leave this service; browsers only
// ever hold the signed session token.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/repository"
	"github.com/Luuchoh/SpotifyScope/internal/token"
)

// postLoginPath is appended to the frontend URL after a successful
// callback.
const postLoginPath = "/dashboard?auth=success"

// ProfileFetcher is the slice of the provider client the auth service
// depends on.
type ProfileFetcher interface {
	Profile(ctx context.Context, accessToken string) (*models.SpotifyProfile, error)
}

// TokenExchanger abstracts the provider OAuth endpoints for testing.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// CallbackResult is the outcome of a completed login callback.
type CallbackResult struct {
	// RedirectURL is where the browser is sent after login.
	RedirectURL string
	// SessionToken is the signed JWT to place in the session cookie.
	SessionToken string
	// SessionExpiry is the cookie lifetime.
	SessionExpiry time.Duration
	// User is the established user record.
	User *models.User
}

// Service defines the authentication operations exposed to handlers.
type Service interface {
	// LoginURL creates a pending OAuth state and returns the provider
	// login URL carrying it.
	LoginURL(ctx context.Context) (string, error)

	// HandleCallback completes the authorization-code flow: verifies the
	// state, exchanges the code, establishes the user and session, and
	// issues a session token.
	HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error)

	// Logout destroys the user's session and cached analytics and clears
	// stored provider tokens.
	Logout(ctx context.Context, userID uuid.UUID) error

	// Profile returns the user record for an authenticated user.
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// AccessToken returns a valid provider access token for the user,
	// refreshing the stored token when it has expired.
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ForceRefresh refreshes the stored provider token unconditionally
	// and returns the new expiry.
	ForceRefresh(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// SpotifyAuthService implements Service against the Spotify provider.
type SpotifyAuthService struct {
	cfg      *config.SpotifyConfig
	exchange TokenExchanger
	profiles ProfileFetcher
	users    repository.UserRepository
	cache    *cache.Facade
	tokens   token.Service
	expiry   time.Duration
	logger   *logrus.Logger
}

// NewService creates the authentication service.
func NewService(
	cfg *config.SpotifyConfig,
	jwtCfg *config.JWTConfig,
	exchange TokenExchanger,
	profiles ProfileFetcher,
	users repository.UserRepository,
	facade *cache.Facade,
	tokens token.Service,
	logger *logrus.Logger,
) Service {
	return &SpotifyAuthService{
		cfg:      cfg,
		exchange: exchange,
		profiles: profiles,
		users:    users,
		cache:    facade,
		tokens:   tokens,
		expiry:   jwtCfg.SessionExpiry,
		logger:   logger,
	}
}

// LoginURL creates a pending OAuth state and returns the provider login
// URL.
func (s *SpotifyAuthService) LoginURL(ctx context.Context) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", models.NewInternalError("failed to start login")
	}

	s.cache.SetOAuthState(ctx, state, s.cfg.FrontendURL)

	s.logger.Debug("Issued OAuth login state")
	return s.exchange.AuthCodeURL(state), nil
}

// HandleCallback completes the authorization-code flow.
func (s *SpotifyAuthService) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	if code == "" || state == "" {
		return nil, models.NewValidationError("code and state are required")
	}

	frontendURL, ok := s.cache.ConsumeOAuthState(ctx, state)
	if !ok {
		return nil, models.NewUnauthorized("invalid or expired login state")
	}
	if frontendURL == "" {
		frontendURL = s.cfg.FrontendURL
	}

	tok, err := s.exchange.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.WithError(err).Warn("Authorization code exchange failed")
		return nil, models.NewUpstreamFailure("failed to complete provider login")
	}

	profile, err := s.profiles.Profile(ctx, tok.AccessToken)
	if err != nil {
		s.logger.WithError(err).Warn("Profile fetch after login failed")
		return nil, models.NewUpstreamFailure("failed to load provider profile")
	}

	user := &models.User{
		SpotifyID:    profile.ID,
		Email:        profile.Email,
		DisplayName:  profile.DisplayName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		user.TokenExpiry = &expiry
	}
	if len(profile.Images) > 0 {
		user.ProfileImage = profile.Images[0].URL
	}

	if err := s.users.UpsertBySpotifyID(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrUnavailable) {
			s.logger.WithError(err).Error("Failed to persist user after login")
			return nil, models.NewInternalError("failed to establish user")
		}
		// Degraded mode: session-only identity until the database returns.
		user.ID = uuid.New()
		s.logger.WithField("spotify_id", profile.ID).
			Warn("Database unavailable, continuing with session-only user")
	}

	sessionToken, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.WithError(err).Error("Failed to issue session token")
		return nil, models.NewInternalError("failed to establish session")
	}

	s.cache.SetSession(ctx, &models.Session{
		UserID:       user.ID,
		SpotifyID:    user.SpotifyID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		TokenExpiry:  user.TokenExpiry,
		LastActivity: time.Now().UTC(),
	})

	s.logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"spotify_id": user.SpotifyID,
	}).Info("User logged in")

	return &CallbackResult{
		RedirectURL:   frontendURL + postLoginPath,
		SessionToken:  sessionToken,
		SessionExpiry: s.expiry,
		User:          user,
	}, nil
}

// Logout destroys the session and cached analytics and clears stored
// provider tokens.
func (s *SpotifyAuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	s.cache.ClearUserData(ctx, userID)

	if err := s.users.ClearTokens(ctx, userID); err != nil {
		if !errors.Is(err, repository.ErrUnavailable) && !errors.Is(err, repository.ErrNotFound) {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to clear stored provider tokens")
		}
	}

	s.logger.WithField("user_id", userID).Info("User logged out")
	return nil
}

// Profile returns the user record for an authenticated user. When the
// database is unavailable it falls back to the cached session fields.
func (s *SpotifyAuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewUserNotFound()
	}
	if errors.Is(err, repository.ErrUnavailable) {
		if session, ok := s.cache.GetSession(ctx, userID); ok {
			return &models.User{
				ID:          session.UserID,
				SpotifyID:   session.SpotifyID,
				Email:       session.Email,
				DisplayName: session.DisplayName,
			}, nil
		}
		return nil, models.NewSessionExpired()
	}
	return nil, models.NewInternalError("failed to load user")
}

// AccessToken returns a valid provider access token for the user.
func (s *SpotifyAuthService) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if user.TokenValid(time.Now()) {
		return user.AccessToken, nil
	}

	tok, err := s.refreshTokens(ctx, user)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ForceRefresh refreshes the stored provider token unconditionally.
func (s *SpotifyAuthService) ForceRefresh(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	tok, err := s.refreshTokens(ctx, user)
	if err != nil {
		return time.Time{}, err
	}
	return tok.Expiry, nil
}

// loadUser resolves the user's provider credentials, preferring the
// database record and falling back to the tokens carried on the session.
// Session-only users from a degraded login are resolved this way until
// the database returns.
func (s *SpotifyAuthService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrUnavailable) {
		return nil, models.NewInternalError("failed to load user credentials")
	}

	if session, ok := s.cache.GetSession(ctx, userID); ok && session.AccessToken != "" {
		return &models.User{
			ID:           session.UserID,
			SpotifyID:    session.SpotifyID,
			Email:        session.Email,
			DisplayName:  session.DisplayName,
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			TokenExpiry:  session.TokenExpiry,
		}, nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewUserNotFound()
	}
	return nil, models.NewInternalError("failed to load user credentials")
}

// refreshTokens exchanges the stored refresh token for a new access token
// and persists the result. A missing or rejected refresh token means the
// user must log in again.
func (s *SpotifyAuthService) refreshTokens(ctx context.Context, user *models.User) (*oauth2.Token, error) {
	if user.RefreshToken == "" {
		return nil, models.NewSessionExpired()
	}

	tok, err := s.exchange.Refresh(ctx, user.RefreshToken)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Provider token refresh rejected")
		return nil, models.NewSessionExpired()
	}

	if err := s.users.UpdateTokens(ctx, user.ID, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		// The fresh token still works for this request.
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to persist refreshed provider tokens")
	}

	// Keep the session copy current so session-only users survive the
	// next token expiry too.
	if session, ok := s.cache.GetSession(ctx, user.ID); ok {
		session.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			session.RefreshToken = tok.RefreshToken
		}
		expiry := tok.Expiry
		session.TokenExpiry = &expiry
		s.cache.SetSession(ctx, session)
	}

	s.logger.WithField("user_id", user.ID).Debug("Provider token refreshed")
	return tok, nil
}
