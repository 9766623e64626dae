package analytics_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuchoh/SpotifyScope/internal/analytics"
	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/repository"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeProvider is a scriptable Provider implementation.
type fakeProvider struct {
	topTracks       []models.Track
	topTracksErr    error
	topArtists      []models.Artist
	topArtistsErr   error
	history         []models.PlayHistoryItem
	historyErr      error
	features        []*models.AudioFeatures
	featuresErr     error
	track           *models.Track
	artist          *models.Artist
	artistTopTracks []models.Track
	trackFeatures   *models.AudioFeatures
	recommended     []models.Track

	topTracksCalls int
	featuresCalls  int
}

func (f *fakeProvider) TopTracks(_ context.Context, _, _ string, _ models.TimeRange, _ int) ([]models.Track, error) {
	f.topTracksCalls++
	return f.topTracks, f.topTracksErr
}

func (f *fakeProvider) TopArtists(_ context.Context, _, _ string, _ models.TimeRange, _ int) ([]models.Artist, error) {
	return f.topArtists, f.topArtistsErr
}

func (f *fakeProvider) RecentlyPlayed(_ context.Context, _, _ string, _ int) ([]models.PlayHistoryItem, error) {
	return f.history, f.historyErr
}

func (f *fakeProvider) AudioFeaturesBulk(_ context.Context, ids []string) ([]*models.AudioFeatures, error) {
	f.featuresCalls++
	if f.featuresErr != nil {
		return nil, f.featuresErr
	}
	if f.features != nil {
		return f.features, nil
	}
	records := make([]*models.AudioFeatures, len(ids))
	for i, id := range ids {
		records[i] = &models.AudioFeatures{ID: id, Danceability: 0.5, Energy: 0.6, Valence: 0.7, Acousticness: 0.2}
	}
	return records, nil
}

func (f *fakeProvider) Track(_ context.Context, _ string) (*models.Track, error) {
	if f.track == nil {
		return nil, models.NewNotFound("track")
	}
	return f.track, nil
}

func (f *fakeProvider) Artist(_ context.Context, _ string) (*models.Artist, error) {
	if f.artist == nil {
		return nil, models.NewNotFound("artist")
	}
	return f.artist, nil
}

func (f *fakeProvider) ArtistTopTracks(_ context.Context, _, _ string) ([]models.Track, error) {
	return f.artistTopTracks, nil
}

func (f *fakeProvider) TrackAudioFeatures(_ context.Context, _ string) (*models.AudioFeatures, error) {
	if f.trackFeatures == nil {
		return nil, models.NewNotFound("audio features")
	}
	return f.trackFeatures, nil
}

func (f *fakeProvider) Recommendations(_ context.Context, _ string, _ models.RecommendationSeeds, _ int) ([]models.Track, error) {
	return f.recommended, nil
}

func sampleTracks(n int) []models.Track {
	tracks := make([]models.Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, models.Track{
			ID:      "t" + string(rune('0'+i)),
			Name:    "Track " + string(rune('0'+i)),
			Artists: []models.ArtistRef{{ID: "a" + string(rune('0'+i)), Name: "Artist"}},
		})
	}
	return tracks
}

func newService(t *testing.T, provider *fakeProvider) (*analytics.Service, *cache.Facade) {
	t.Helper()
	store := cache.NewMemoryStore(testLogger())
	t.Cleanup(func() { _ = store.Close() })
	facade := cache.NewFacade(store, testLogger())
	return analytics.NewService(provider, facade, nil, testLogger()), facade
}

func userCtx() analytics.UserContext {
	return analytics.UserContext{
		UserID:      uuid.New(),
		SpotifyID:   "spotify-user",
		AccessToken: "user-token",
	}
}

func TestGenerateUserAnalytics(t *testing.T) {
	provider := &fakeProvider{
		topTracks: sampleTracks(3),
		topArtists: []models.Artist{
			{ID: "a1", Genres: []string{"pop", "rock"}},
			{ID: "a2", Genres: []string{"pop"}},
		},
		history: []models.PlayHistoryItem{
			{PlayedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},
		},
	}
	service, _ := newService(t, provider)

	result, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeShort)
	require.NoError(t, err)

	require.Len(t, result.TopGenres, 2)
	assert.Equal(t, "pop", result.TopGenres[0].Genre)
	assert.NotEmpty(t, result.AudioFeaturesSummary.Averages)
	assert.Equal(t, 1, result.ListeningPatterns.TimeOfDay["morning"])
	assert.Greater(t, result.DiversityScore, 0)
	assert.Equal(t, 70, result.MoodProfile.Happy)
	assert.Empty(t, result.Message)
}

func TestGenerateUserAnalyticsSummaryIncludesTempo(t *testing.T) {
	provider := &fakeProvider{
		topTracks:  sampleTracks(2),
		topArtists: []models.Artist{{ID: "a1", Genres: []string{"pop"}}},
		features: []*models.AudioFeatures{
			{ID: "t0", Danceability: 0.5, Energy: 0.6, Valence: 0.7, Tempo: 118, Liveness: 0.3},
			{ID: "t1", Danceability: 0.4, Energy: 0.5, Valence: 0.6, Tempo: 126, Liveness: 0.1},
		},
	}
	service, _ := newService(t, provider)

	result, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeShort)
	require.NoError(t, err)

	averages := result.AudioFeaturesSummary.Averages
	assert.InDelta(t, 122.0, averages[models.FeatureTempo], 0.001)
	assert.Contains(t, averages, models.FeatureSpeechiness)
	assert.NotContains(t, averages, models.FeatureLiveness)
	assert.Contains(t, result.AudioFeaturesSummary.Distributions, models.FeatureTempo)
}

func TestGenerateUserAnalyticsCachesResult(t *testing.T) {
	provider := &fakeProvider{
		topTracks:  sampleTracks(2),
		topArtists: []models.Artist{{ID: "a1", Genres: []string{"pop"}}},
	}
	service, _ := newService(t, provider)
	user := userCtx()
	ctx := context.Background()

	first, err := service.GenerateUserAnalytics(ctx, user, models.TimeRangeShort)
	require.NoError(t, err)

	second, err := service.GenerateUserAnalytics(ctx, user, models.TimeRangeShort)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.topTracksCalls)
}

func TestGenerateUserAnalyticsInsufficientHistory(t *testing.T) {
	provider := &fakeProvider{topTracks: nil, topArtists: nil}
	service, _ := newService(t, provider)

	result, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeLong)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.TopGenres)
	assert.Zero(t, result.DiversityScore)
	assert.Equal(t, models.MoodProfile{}, result.MoodProfile)
	assert.Zero(t, result.ListeningPatterns.TimeOfDay["morning"])
}

func TestGenerateUserAnalyticsProviderFailurePropagates(t *testing.T) {
	provider := &fakeProvider{topTracksErr: models.NewRateLimited()}
	service, _ := newService(t, provider)

	_, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeShort)
	require.Error(t, err)
	apiErr := models.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, models.CodeRateLimitExceeded, apiErr.Code)
}

func TestGenerateUserAnalyticsHistoryFailureTolerated(t *testing.T) {
	provider := &fakeProvider{
		topTracks:  sampleTracks(2),
		topArtists: []models.Artist{{ID: "a1", Genres: []string{"pop"}}},
		historyErr: errors.New("provider hiccup"),
	}
	service, _ := newService(t, provider)

	result, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeShort)
	require.NoError(t, err)
	assert.NotEmpty(t, result.TopGenres)
	assert.Zero(t, result.ListeningPatterns.TimeOfDay["morning"])
}

func TestAnalyzeTopTracks(t *testing.T) {
	provider := &fakeProvider{
		topTracks: sampleTracks(3),
		features: []*models.AudioFeatures{
			{ID: "t0", Energy: 0.8},
			nil,
			{ID: "t2", Energy: 0.4},
		},
	}
	service, _ := newService(t, provider)

	analysis, err := service.AnalyzeTopTracks(context.Background(), userCtx(), models.TimeRangeMedium, 3)
	require.NoError(t, err)

	require.Len(t, analysis.Tracks, 3)
	assert.Equal(t, 1, analysis.Tracks[0].Rank)
	assert.NotNil(t, analysis.Tracks[0].AudioFeatures)
	assert.Nil(t, analysis.Tracks[1].AudioFeatures)
	assert.Equal(t, 3, analysis.Tracks[2].Rank)
	assert.Equal(t, models.TimeRangeMedium, analysis.TimeRange)
	assert.NotEmpty(t, analysis.Summary)
}

func TestGenerateRecommendations(t *testing.T) {
	provider := &fakeProvider{
		topTracks:   sampleTracks(5),
		topArtists:  []models.Artist{{ID: "a1", Genres: []string{"pop"}}},
		recommended: sampleTracks(3),
	}
	service, _ := newService(t, provider)

	recs, err := service.GenerateRecommendations(context.Background(), userCtx(), 20)
	require.NoError(t, err)

	assert.Len(t, recs.Tracks, 3)
	assert.Len(t, recs.BasedOn.SeedTracks, 2)
	assert.NotEmpty(t, recs.BasedOn.TopGenres)
	assert.Empty(t, recs.Message)
}

func TestGenerateRecommendationsBasisCapsGenresAtThree(t *testing.T) {
	provider := &fakeProvider{
		topTracks: sampleTracks(5),
		topArtists: []models.Artist{
			{ID: "a1", Genres: []string{"pop", "rock", "jazz", "soul", "funk"}},
		},
		recommended: sampleTracks(2),
	}
	service, _ := newService(t, provider)

	recs, err := service.GenerateRecommendations(context.Background(), userCtx(), 20)
	require.NoError(t, err)

	require.Len(t, recs.BasedOn.TopGenres, 3)
	assert.Equal(t, "pop", recs.BasedOn.TopGenres[0].Genre)
}

func TestGenerateRecommendationsNoHistory(t *testing.T) {
	provider := &fakeProvider{}
	service, _ := newService(t, provider)

	recs, err := service.GenerateRecommendations(context.Background(), userCtx(), 20)
	require.NoError(t, err)

	assert.Empty(t, recs.Tracks)
	assert.NotEmpty(t, recs.Message)
}

func TestAnalyzeTrack(t *testing.T) {
	provider := &fakeProvider{
		track: &models.Track{
			ID:         "t1",
			Name:       "Song",
			Popularity: 73,
			Artists:    []models.ArtistRef{{ID: "a1", Name: "Band"}},
		},
		trackFeatures: &models.AudioFeatures{ID: "t1", Danceability: 0.8},
		artist:        &models.Artist{ID: "a1", Genres: []string{"indie"}},
	}
	service, _ := newService(t, provider)

	insight, err := service.AnalyzeTrack(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "Song", insight.Name)
	assert.Equal(t, "Band", insight.Artist)
	assert.Equal(t, 73, insight.Popularity)
	assert.InDelta(t, 0.8, insight.AudioFeatures.Danceability, 1e-9)
	assert.Equal(t, []string{"indie"}, insight.Genres)
}

func TestAnalyzeArtist(t *testing.T) {
	provider := &fakeProvider{
		artist: &models.Artist{
			ID:         "a1",
			Name:       "Band",
			Popularity: 88,
			Followers:  models.Followers{Total: 1000},
			Genres:     []string{"indie", "rock"},
		},
		artistTopTracks: sampleTracks(4),
	}
	service, _ := newService(t, provider)

	analysis, err := service.AnalyzeArtist(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, "Band", analysis.Artist.Name)
	assert.Equal(t, 1000, analysis.Artist.Followers)
	assert.Len(t, analysis.TopTracks, 4)
	assert.NotEmpty(t, analysis.AudioProfile)
}

func TestSnapshotHistoryWithoutPersistence(t *testing.T) {
	service, _ := newService(t, &fakeProvider{})

	snapshots, err := service.SnapshotHistory(context.Background(), uuid.New(), models.SnapshotFullAnalytics, 10)
	require.NoError(t, err)
	assert.NotNil(t, snapshots)
	assert.Empty(t, snapshots)
}

// recordingSnapshots captures inserted snapshots.
type recordingSnapshots struct {
	inserted []*models.AnalyticsSnapshot
}

func (r *recordingSnapshots) Insert(_ context.Context, snapshot *models.AnalyticsSnapshot) error {
	r.inserted = append(r.inserted, snapshot)
	return nil
}

func (r *recordingSnapshots) ListRecent(context.Context, uuid.UUID, string, int) ([]models.AnalyticsSnapshot, error) {
	return nil, repository.ErrUnavailable
}

func (r *recordingSnapshots) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestGenerateUserAnalyticsPersistsSnapshot(t *testing.T) {
	provider := &fakeProvider{
		topTracks:  sampleTracks(2),
		topArtists: []models.Artist{{ID: "a1", Genres: []string{"pop"}}},
	}
	store := cache.NewMemoryStore(testLogger())
	t.Cleanup(func() { _ = store.Close() })

	snapshots := &recordingSnapshots{}
	service := analytics.NewService(provider, cache.NewFacade(store, testLogger()), snapshots, testLogger())

	_, err := service.GenerateUserAnalytics(context.Background(), userCtx(), models.TimeRangeShort)
	require.NoError(t, err)

	require.Len(t, snapshots.inserted, 1)
	assert.Equal(t, models.SnapshotFullAnalytics, snapshots.inserted[0].DataType)
	assert.Equal(t, string(models.TimeRangeShort), snapshots.inserted[0].TimeRange)
	assert.NotEmpty(t, snapshots.inserted[0].Data)
}
