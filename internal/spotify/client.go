package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// APIBaseURL is the production Web API root.
const APIBaseURL = "https://api.spotify.com/v1"

// ErrProviderTokenExpired signals a 401 from the provider. The auth layer
// reacts by refreshing the user's access token and retrying.
var ErrProviderTokenExpired = errors.New("provider access token expired")

// Client calls the Spotify Web API. User-scoped endpoints authenticate with
// the caller's access token, public catalog endpoints with the application
// token. Every GET is read-through cached under the provider namespace.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenManager
	cache      *cache.Facade
	batchSize  int
	logger     *logrus.Logger
}

// NewClient creates a Web API client.
//
// Parameters:
//   - baseURL: API root, APIBaseURL in production
//   - cfg: provider credentials and client settings
//   - tokens: application token source for catalog lookups
//   - facade: cache for read-through memoization
//   - logger: structured logger for outbound calls
func NewClient(
	baseURL string,
	cfg *config.SpotifyConfig,
	tokens TokenManager,
	facade *cache.Facade,
	logger *logrus.Logger,
) *Client {
	batch := cfg.AudioFeatureBatchSize
	if batch <= 0 || batch > config.MaxAudioFeatureBatchSize {
		batch = config.MaxAudioFeatureBatchSize
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    baseURL,
		tokens:     tokens,
		cache:      facade,
		batchSize:  batch,
		logger:     logger,
	}
}

// apiError mirrors the provider's error envelope.
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// getJSON performs an authenticated GET and decodes the response into dest.
// When cacheKeyParams is non-nil the response is served from and written to
// the cache under the endpoint's provider namespace.
func (c *Client) getJSON(
	ctx context.Context,
	accessToken string,
	path string,
	query url.Values,
	cacheEndpoint string,
	cacheKeyParams map[string]string,
	dest any,
) error {
	if cacheKeyParams != nil && c.cache.GetProviderData(ctx, cacheEndpoint, cacheKeyParams, dest) {
		return nil
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+accessToken)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	c.logger.WithFields(logrus.Fields{
		"method": http.MethodGet,
		"path":   path,
	}).Debug("Sending provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Error("Provider request failed")
		return models.NewUpstreamFailure("provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewUpstreamFailure("failed to read provider response")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return models.NewUpstreamFailure("failed to decode provider response")
	}

	if cacheKeyParams != nil {
		c.cache.SetProviderData(ctx, cacheEndpoint, cacheKeyParams, dest)
	}
	return nil
}

// statusError maps a non-200 provider response onto the service error
// taxonomy. The body is drained so the connection can be reused.
func (c *Client) statusError(resp *http.Response, path string) error {
	var envelope apiError
	providerMsg := ""
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		providerMsg = envelope.Error.Message
	}

	c.logger.WithFields(logrus.Fields{
		"path":    path,
		"status":  resp.StatusCode,
		"message": providerMsg,
	}).Warn("Provider returned error status")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrProviderTokenExpired
	case http.StatusForbidden:
		return models.NewUnauthorized("provider denied access")
	case http.StatusNotFound:
		return models.NewNotFound("resource")
	case http.StatusTooManyRequests:
		apiErr := models.NewRateLimited()
		if retryAfter := resp.Header.Get(constants.HeaderRetryAfter); retryAfter != "" {
			apiErr = apiErr.WithDetails("retry after " + retryAfter + "s")
		}
		return apiErr
	default:
		return models.NewUpstreamFailure(
			fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
}

// appToken fetches the application token for catalog lookups.
func (c *Client) appToken(ctx context.Context) (string, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return "", models.NewUpstreamFailure("provider authentication failed")
	}
	return tok, nil
}

// Profile fetches the authenticated user's provider profile. Never cached:
// it is the identity call the OAuth callback depends on.
func (c *Client) Profile(ctx context.Context, accessToken string) (*models.SpotifyProfile, error) {
	var profile models.SpotifyProfile
	if err := c.getJSON(ctx, accessToken, "/me", nil, "", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// pagedTracks is the provider envelope for top-item and paged track lists.
type pagedTracks struct {
	Items []models.Track `json:"items"`
}

type pagedArtists struct {
	Items []models.Artist `json:"items"`
}

// TopTracks fetches the user's most played tracks within a time range.
// The spotifyID scopes the cache entry to its owner.
func (c *Client) TopTracks(
	ctx context.Context,
	accessToken, spotifyID string,
	timeRange models.TimeRange,
	limit int,
) ([]models.Track, error) {
	query := url.Values{}
	query.Set("time_range", string(timeRange))
	query.Set("limit", strconv.Itoa(limit))

	var page pagedTracks
	params := map[string]string{
		"user":       spotifyID,
		"time_range": string(timeRange),
		"limit":      strconv.Itoa(limit),
	}
	if err := c.getJSON(ctx, accessToken, "/me/top/tracks", query, "top-tracks", params, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// TopArtists fetches the user's most played artists within a time range.
func (c *Client) TopArtists(
	ctx context.Context,
	accessToken, spotifyID string,
	timeRange models.TimeRange,
	limit int,
) ([]models.Artist, error) {
	query := url.Values{}
	query.Set("time_range", string(timeRange))
	query.Set("limit", strconv.Itoa(limit))

	var page pagedArtists
	params := map[string]string{
		"user":       spotifyID,
		"time_range": string(timeRange),
		"limit":      strconv.Itoa(limit),
	}
	if err := c.getJSON(ctx, accessToken, "/me/top/artists", query, "top-artists", params, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// RecentlyPlayed fetches the user's play history, newest first.
func (c *Client) RecentlyPlayed(
	ctx context.Context,
	accessToken, spotifyID string,
	limit int,
) ([]models.PlayHistoryItem, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var page struct {
		Items []models.PlayHistoryItem `json:"items"`
	}
	params := map[string]string{"user": spotifyID, "limit": strconv.Itoa(limit)}
	if err := c.getJSON(ctx, accessToken, "/me/player/recently-played", query, "recently-played", params, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// wirePlaylist is the provider playlist shape before flattening.
type wirePlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	Owner  struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
	Images []models.Image `json:"images"`
}

// Playlists fetches the user's playlists.
func (c *Client) Playlists(
	ctx context.Context,
	accessToken, spotifyID string,
	limit int,
) ([]models.Playlist, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var page struct {
		Items []wirePlaylist `json:"items"`
	}
	params := map[string]string{"user": spotifyID, "limit": strconv.Itoa(limit)}
	if err := c.getJSON(ctx, accessToken, "/me/playlists", query, "playlists", params, &page); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(page.Items))
	for _, item := range page.Items {
		playlists = append(playlists, models.Playlist{
			ID:     item.ID,
			Name:   item.Name,
			Owner:  item.Owner.DisplayName,
			Tracks: item.Tracks.Total,
			Images: item.Images,
			Public: item.Public,
		})
	}
	return playlists, nil
}

// Track fetches a single catalog track using the application token.
func (c *Client) Track(ctx context.Context, trackID string) (*models.Track, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	var track models.Track
	params := map[string]string{"id": trackID}
	if err := c.getJSON(ctx, tok, "/tracks/"+trackID, nil, "track", params, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Artist fetches a single catalog artist using the application token.
func (c *Client) Artist(ctx context.Context, artistID string) (*models.Artist, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	var artist models.Artist
	params := map[string]string{"id": artistID}
	if err := c.getJSON(ctx, tok, "/artists/"+artistID, nil, "artist", params, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// ArtistTopTracks fetches an artist's most popular tracks for a market.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID, market string) ([]models.Track, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("market", market)

	var envelope struct {
		Tracks []models.Track `json:"tracks"`
	}
	params := map[string]string{"id": artistID, "market": market}
	err = c.getJSON(ctx, tok, "/artists/"+artistID+"/top-tracks", query, "artist-top-tracks", params, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Tracks, nil
}

// SearchTracks searches the catalog for tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, q string, limit int) ([]models.Track, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "track")
	query.Set("limit", strconv.Itoa(limit))

	var envelope struct {
		Tracks pagedTracks `json:"tracks"`
	}
	params := map[string]string{"q": q, "type": "track", "limit": strconv.Itoa(limit)}
	if err := c.getJSON(ctx, tok, "/search", query, "search", params, &envelope); err != nil {
		return nil, err
	}
	return envelope.Tracks.Items, nil
}

// SearchArtists searches the catalog for artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, q string, limit int) ([]models.Artist, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "artist")
	query.Set("limit", strconv.Itoa(limit))

	var envelope struct {
		Artists pagedArtists `json:"artists"`
	}
	params := map[string]string{"q": q, "type": "artist", "limit": strconv.Itoa(limit)}
	if err := c.getJSON(ctx, tok, "/search", query, "search", params, &envelope); err != nil {
		return nil, err
	}
	return envelope.Artists.Items, nil
}

// TrackAudioFeatures fetches the audio feature record for a single track.
func (c *Client) TrackAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	var features models.AudioFeatures
	params := map[string]string{"id": trackID}
	if err := c.getJSON(ctx, tok, "/audio-features/"+trackID, nil, "audio-features", params, &features); err != nil {
		return nil, err
	}
	return &features, nil
}

// Recommendations fetches track recommendations for the given seeds.
func (c *Client) Recommendations(
	ctx context.Context,
	accessToken string,
	seeds models.RecommendationSeeds,
	limit int,
) ([]models.Track, error) {
	query := url.Values{}
	if len(seeds.TrackIDs) > 0 {
		query.Set("seed_tracks", joinIDs(seeds.TrackIDs))
	}
	if len(seeds.ArtistIDs) > 0 {
		query.Set("seed_artists", joinIDs(seeds.ArtistIDs))
	}
	query.Set("limit", strconv.Itoa(limit))

	var envelope struct {
		Tracks []models.Track `json:"tracks"`
	}
	params := map[string]string{
		"seed_tracks":  joinIDs(seeds.TrackIDs),
		"seed_artists": joinIDs(seeds.ArtistIDs),
		"limit":        strconv.Itoa(limit),
	}
	if err := c.getJSON(ctx, accessToken, "/recommendations", query, "recommendations", params, &envelope); err != nil {
		return nil, err
	}
	return envelope.Tracks, nil
}
