package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/analytics"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/middleware"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/spotify"
)

// MusicProvider is the slice of the provider client the music endpoints
// call directly.
type MusicProvider interface {
	SearchTracks(ctx context.Context, q string, limit int) ([]models.Track, error)
	SearchArtists(ctx context.Context, q string, limit int) ([]models.Artist, error)
	Track(ctx context.Context, trackID string) (*models.Track, error)
	Artist(ctx context.Context, artistID string) (*models.Artist, error)
	TopTracks(ctx context.Context, accessToken, spotifyID string, timeRange models.TimeRange, limit int) ([]models.Track, error)
	TopArtists(ctx context.Context, accessToken, spotifyID string, timeRange models.TimeRange, limit int) ([]models.Artist, error)
	RecentlyPlayed(ctx context.Context, accessToken, spotifyID string, limit int) ([]models.PlayHistoryItem, error)
	Playlists(ctx context.Context, accessToken, spotifyID string, limit int) ([]models.Playlist, error)
}

// ProviderTokenSource supplies provider access tokens for authenticated
// users, refreshing stored tokens when needed.
type ProviderTokenSource interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)
	ForceRefresh(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// MusicHandler exposes the catalog, listening, and analytics endpoints.
type MusicHandler struct {
	provider  MusicProvider
	analytics *analytics.Service
	tokens    ProviderTokenSource
	config    *config.Config
	logger    *logrus.Logger
}

// NewMusicHandler creates the music endpoint handler.
func NewMusicHandler(
	provider MusicProvider,
	analyticsSvc *analytics.Service,
	tokens ProviderTokenSource,
	cfg *config.Config,
	logger *logrus.Logger,
) *MusicHandler {
	return &MusicHandler{
		provider:  provider,
		analytics: analyticsSvc,
		tokens:    tokens,
		config:    cfg,
		logger:    logger,
	}
}

// SearchTracks searches the catalog without user authentication.
//
//	GET /api/music/search/tracks?q=...&limit=...
func (h *MusicHandler) SearchTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, h.logger, models.NewValidationError("query parameter q is required"), h.config.IsDevelopment())
		return
	}

	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	tracks, err := h.provider.SearchTracks(r.Context(), q, limit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, map[string]any{"tracks": tracks})
}

// SearchArtists searches the artist catalog without user authentication.
//
//	GET /api/music/search/artists?q=...&limit=...
func (h *MusicHandler) SearchArtists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, h.logger, models.NewValidationError("query parameter q is required"), h.config.IsDevelopment())
		return
	}

	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	artists, err := h.provider.SearchArtists(r.Context(), q, limit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, map[string]any{"artists": artists})
}

// Track returns a single catalog track.
//
//	GET /api/music/track/{id}
func (h *MusicHandler) Track(w http.ResponseWriter, r *http.Request) {
	track, err := h.provider.Track(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, track)
}

// TrackAnalysis returns a track with its audio features and genres.
//
//	GET /api/music/track/{id}/analysis
func (h *MusicHandler) TrackAnalysis(w http.ResponseWriter, r *http.Request) {
	insight, err := h.analytics.AnalyzeTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, insight)
}

// Artist returns a single catalog artist.
//
//	GET /api/music/artist/{id}
func (h *MusicHandler) Artist(w http.ResponseWriter, r *http.Request) {
	artist, err := h.provider.Artist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, artist)
}

// ArtistAnalysis returns an artist with the audio profile of their top
// tracks.
//
//	GET /api/music/artist/{id}/analysis
func (h *MusicHandler) ArtistAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analytics.AnalyzeArtist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, analysis)
}

// UserTopTracks returns the authenticated user's most played tracks.
//
//	GET /api/music/user/top-tracks?time_range=...&limit=...
func (h *MusicHandler) UserTopTracks(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseTimeRange(r)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}
	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		tracks, err := h.provider.TopTracks(ctx, user.AccessToken, user.SpotifyID, timeRange, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": tracks, "timeRange": timeRange}, nil
	})
}

// UserTopArtists returns the authenticated user's most played artists.
//
//	GET /api/music/user/top-artists?time_range=...&limit=...
func (h *MusicHandler) UserTopArtists(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseTimeRange(r)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}
	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		artists, err := h.provider.TopArtists(ctx, user.AccessToken, user.SpotifyID, timeRange, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": artists, "timeRange": timeRange}, nil
	})
}

// UserAnalytics returns the full listening analytics payload.
//
//	GET /api/music/user/analytics?time_range=...
func (h *MusicHandler) UserAnalytics(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseTimeRange(r)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		return h.analytics.GenerateUserAnalytics(ctx, user, timeRange)
	})
}

// UserRecentlyPlayed returns the user's recent play history.
//
//	GET /api/music/user/recently-played?limit=...
func (h *MusicHandler) UserRecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		items, err := h.provider.RecentlyPlayed(ctx, user.AccessToken, user.SpotifyID, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil
	})
}

// UserRecommendations returns track recommendations seeded from the user's
// recent favorites.
//
//	GET /api/music/user/recommendations?limit=...
func (h *MusicHandler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		return h.analytics.GenerateRecommendations(ctx, user, limit)
	})
}

// UserPlaylists returns the user's playlists.
//
//	GET /api/music/user/playlists?limit=...
func (h *MusicHandler) UserPlaylists(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultItemLimit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	h.withUserToken(w, r, func(ctx context.Context, user analytics.UserContext) (any, error) {
		playlists, err := h.provider.Playlists(ctx, user.AccessToken, user.SpotifyID, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": playlists}, nil
	})
}

// UserAnalyticsHistory lists the user's persisted analytics snapshots.
//
//	GET /api/music/user/analytics/history?data_type=...&limit=...
func (h *MusicHandler) UserAnalyticsHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, models.NewUnauthorized("authentication required"), h.config.IsDevelopment())
		return
	}

	limit, err := parseLimit(r, 10)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	dataType := r.URL.Query().Get("data_type")
	if dataType == "" {
		dataType = models.SnapshotFullAnalytics
	}

	snapshots, err := h.analytics.SnapshotHistory(r.Context(), principal.UserID, dataType, limit)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, map[string]any{"items": snapshots})
}

// withUserToken resolves the caller's provider access token, runs fn, and
// retries once with a forced refresh when the provider rejects the token.
func (h *MusicHandler) withUserToken(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, user analytics.UserContext) (any, error),
) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, models.NewUnauthorized("authentication required"), h.config.IsDevelopment())
		return
	}

	ctx := r.Context()

	accessToken, err := h.tokens.AccessToken(ctx, principal.UserID)
	if err != nil {
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	user := analytics.UserContext{
		UserID:      principal.UserID,
		SpotifyID:   principal.SpotifyID,
		AccessToken: accessToken,
	}

	payload, err := fn(ctx, user)
	if errors.Is(err, spotify.ErrProviderTokenExpired) {
		// The stored expiry can lag the provider's; refresh and retry once.
		if _, refreshErr := h.tokens.ForceRefresh(ctx, principal.UserID); refreshErr != nil {
			writeError(w, h.logger, refreshErr, h.config.IsDevelopment())
			return
		}
		if user.AccessToken, err = h.tokens.AccessToken(ctx, principal.UserID); err != nil {
			writeError(w, h.logger, err, h.config.IsDevelopment())
			return
		}
		payload, err = fn(ctx, user)
	}
	if err != nil {
		if errors.Is(err, spotify.ErrProviderTokenExpired) {
			err = models.NewSessionExpired()
		}
		writeError(w, h.logger, err, h.config.IsDevelopment())
		return
	}

	writeJSON(w, h.logger, payload)
}
