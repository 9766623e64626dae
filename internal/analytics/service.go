package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/models"
	"github.com/Luuchoh/SpotifyScope/internal/repository"
)

// itemFetchLimit is how many top items and history entries feed a
// computation.
const itemFetchLimit = 50

// insufficientDataMessage explains a degraded all-zero analytics payload.
const insufficientDataMessage = "Not enough listening history to compute analytics yet. Keep listening and check back soon."

// noSeedsMessage explains an empty recommendation result.
const noSeedsMessage = "Not enough listening history to generate recommendations yet."

// basisGenreLimit caps the genres echoed back in the recommendation basis.
const basisGenreLimit = 3

// Provider is the slice of the provider client the analytics service
// depends on.
type Provider interface {
	TopTracks(ctx context.Context, accessToken, spotifyID string, timeRange models.TimeRange, limit int) ([]models.Track, error)
	TopArtists(ctx context.Context, accessToken, spotifyID string, timeRange models.TimeRange, limit int) ([]models.Artist, error)
	RecentlyPlayed(ctx context.Context, accessToken, spotifyID string, limit int) ([]models.PlayHistoryItem, error)
	AudioFeaturesBulk(ctx context.Context, trackIDs []string) ([]*models.AudioFeatures, error)
	Track(ctx context.Context, trackID string) (*models.Track, error)
	Artist(ctx context.Context, artistID string) (*models.Artist, error)
	ArtistTopTracks(ctx context.Context, artistID, market string) ([]models.Track, error)
	TrackAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error)
	Recommendations(ctx context.Context, accessToken string, seeds models.RecommendationSeeds, limit int) ([]models.Track, error)
}

// UserContext carries the identity and provider credential a computation
// runs under.
type UserContext struct {
	UserID      uuid.UUID
	SpotifyID   string
	AccessToken string
}

// Service computes and memoizes user analytics. Computed results are cached
// under the analytics namespace and persisted as snapshots when a database
// is available; both writes are best effort.
type Service struct {
	provider  Provider
	cache     *cache.Facade
	snapshots repository.SnapshotRepository
	logger    *logrus.Logger
}

// NewService creates the analytics service. snapshots may be nil when
// persistence is not configured.
func NewService(
	provider Provider,
	facade *cache.Facade,
	snapshots repository.SnapshotRepository,
	logger *logrus.Logger,
) *Service {
	return &Service{
		provider:  provider,
		cache:     facade,
		snapshots: snapshots,
		logger:    logger,
	}
}

// GenerateUserAnalytics computes the full analytics payload for a user and
// time range. A user without enough listening history receives the
// documented empty payload rather than an error.
func (s *Service) GenerateUserAnalytics(
	ctx context.Context,
	user UserContext,
	timeRange models.TimeRange,
) (*models.MusicAnalytics, error) {
	var cached models.MusicAnalytics
	if s.cache.GetUserAnalytics(ctx, user.UserID, models.SnapshotFullAnalytics, timeRange, &cached) {
		return &cached, nil
	}

	result, err := s.computeUserAnalytics(ctx, user, timeRange)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			return models.EmptyMusicAnalytics(insufficientDataMessage), nil
		}
		return nil, err
	}

	s.cache.SetUserAnalytics(ctx, user.UserID, models.SnapshotFullAnalytics, timeRange, result)
	s.persistSnapshot(ctx, user.UserID, models.SnapshotFullAnalytics, string(timeRange), result)
	return result, nil
}

// computeUserAnalytics fetches source data and runs the aggregation engine.
func (s *Service) computeUserAnalytics(
	ctx context.Context,
	user UserContext,
	timeRange models.TimeRange,
) (*models.MusicAnalytics, error) {
	tracks, err := s.provider.TopTracks(ctx, user.AccessToken, user.SpotifyID, timeRange, itemFetchLimit)
	if err != nil {
		return nil, err
	}

	artists, err := s.provider.TopArtists(ctx, user.AccessToken, user.SpotifyID, timeRange, itemFetchLimit)
	if err != nil {
		return nil, err
	}

	if len(tracks) == 0 || len(artists) == 0 {
		return nil, models.ErrInsufficientData
	}

	history, err := s.provider.RecentlyPlayed(ctx, user.AccessToken, user.SpotifyID, itemFetchLimit)
	if err != nil {
		// Pattern data is additive, analytics still make sense without it.
		s.logger.WithError(err).WithField("user_id", user.UserID).
			Warn("Recently played fetch failed, patterns will be empty")
		history = nil
	}

	features, err := s.fetchFeatures(ctx, tracks)
	if err != nil {
		return nil, err
	}

	genres := UniqueGenres(artists)

	return &models.MusicAnalytics{
		TopGenres:            RankGenres(artists),
		AudioFeaturesSummary: SummarizeAudioFeatures(features, summaryFeatures),
		ListeningPatterns:    AnalyzeListeningPatterns(history),
		DiversityScore:       DiversityScore(genres, features),
		MoodProfile:          MoodProfile(features),
	}, nil
}

// AnalyzeTopTracks pairs a user's top tracks with their audio features and
// a per-feature statistical summary.
func (s *Service) AnalyzeTopTracks(
	ctx context.Context,
	user UserContext,
	timeRange models.TimeRange,
	limit int,
) (*models.TopTracksAnalysis, error) {
	var cached models.TopTracksAnalysis
	if s.cache.GetUserAnalytics(ctx, user.UserID, models.SnapshotTopTracks, timeRange, &cached) {
		return &cached, nil
	}

	tracks, err := s.provider.TopTracks(ctx, user.AccessToken, user.SpotifyID, timeRange, limit)
	if err != nil {
		return nil, err
	}

	trackIDs := make([]string, 0, len(tracks))
	for _, track := range tracks {
		trackIDs = append(trackIDs, track.ID)
	}

	featureRecords, err := s.provider.AudioFeaturesBulk(ctx, trackIDs)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.RankedTrack, 0, len(tracks))
	present := make([]models.AudioFeatures, 0, len(tracks))
	for i, track := range tracks {
		var f *models.AudioFeatures
		if i < len(featureRecords) {
			f = featureRecords[i]
		}
		if f != nil {
			present = append(present, *f)
		}
		ranked = append(ranked, models.RankedTrack{
			Track:         track,
			AudioFeatures: f,
			Rank:          i + 1,
		})
	}

	analysis := &models.TopTracksAnalysis{
		Tracks:      ranked,
		Summary:     AudioProfile(present, profileFeatures),
		TimeRange:   timeRange,
		GeneratedAt: time.Now().UTC(),
	}

	s.cache.SetUserAnalytics(ctx, user.UserID, models.SnapshotTopTracks, timeRange, analysis)
	s.persistSnapshot(ctx, user.UserID, models.SnapshotTopTracks, string(timeRange), analysis)
	return analysis, nil
}

// GenerateRecommendations derives seeds from the user's recent favorites
// and asks the provider for matching tracks.
func (s *Service) GenerateRecommendations(
	ctx context.Context,
	user UserContext,
	limit int,
) (*models.Recommendations, error) {
	topTracks, err := s.provider.TopTracks(ctx, user.AccessToken, user.SpotifyID, models.TimeRangeShort, itemFetchLimit)
	if err != nil {
		return nil, err
	}
	if len(topTracks) == 0 {
		return &models.Recommendations{
			Tracks:  []models.Track{},
			Message: noSeedsMessage,
		}, nil
	}

	seeds := SelectRecommendationSeeds(topTracks)

	recommended, err := s.provider.Recommendations(ctx, user.AccessToken, seeds, limit)
	if err != nil {
		return nil, err
	}

	basis := models.RecommendationBasis{
		SeedTracks: topTracks[:min(len(topTracks), maxSeedTracks)],
	}
	if artists, artistErr := s.provider.TopArtists(ctx, user.AccessToken, user.SpotifyID, models.TimeRangeShort, itemFetchLimit); artistErr == nil {
		genres := RankGenres(artists)
		basis.TopGenres = genres[:min(len(genres), basisGenreLimit)]
	}
	if features, featErr := s.fetchFeatures(ctx, topTracks); featErr == nil {
		basis.MoodProfile = MoodProfile(features)
	}

	return &models.Recommendations{
		Tracks:  recommended,
		BasedOn: basis,
	}, nil
}

// AnalyzeTrack builds the single-track insight: catalog record, audio
// features, and the primary artist's genres.
func (s *Service) AnalyzeTrack(ctx context.Context, trackID string) (*models.TrackInsight, error) {
	track, err := s.provider.Track(ctx, trackID)
	if err != nil {
		return nil, err
	}

	features, err := s.provider.TrackAudioFeatures(ctx, trackID)
	if err != nil {
		return nil, err
	}

	insight := &models.TrackInsight{
		ID:            track.ID,
		Name:          track.Name,
		Popularity:    track.Popularity,
		AudioFeatures: *features,
		Genres:        []string{},
	}
	if len(track.Artists) > 0 {
		insight.Artist = track.Artists[0].Name
	}

	if artistID := track.PrimaryArtistID(); artistID != "" {
		if artist, artistErr := s.provider.Artist(ctx, artistID); artistErr == nil && artist.Genres != nil {
			insight.Genres = artist.Genres
		}
	}
	return insight, nil
}

// AnalyzeArtist builds the artist analysis: profile plus the audio profile
// of the artist's top tracks.
func (s *Service) AnalyzeArtist(ctx context.Context, artistID string) (*models.ArtistAnalysis, error) {
	artist, err := s.provider.Artist(ctx, artistID)
	if err != nil {
		return nil, err
	}

	topTracks, err := s.provider.ArtistTopTracks(ctx, artistID, "US")
	if err != nil {
		return nil, err
	}

	features, err := s.fetchFeatures(ctx, topTracks)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.TrackSummary, 0, len(topTracks))
	for _, track := range topTracks {
		summaries = append(summaries, models.TrackSummary{
			ID:         track.ID,
			Name:       track.Name,
			Popularity: track.Popularity,
		})
	}

	return &models.ArtistAnalysis{
		Artist: models.ArtistSummary{
			ID:         artist.ID,
			Name:       artist.Name,
			Popularity: artist.Popularity,
			Followers:  artist.Followers.Total,
			Genres:     artist.Genres,
		},
		AudioProfile: AudioProfile(features, profileFeatures),
		TopTracks:    summaries,
	}, nil
}

// SnapshotHistory lists a user's persisted analytics snapshots, newest
// first. Returns an empty list when persistence is not configured.
func (s *Service) SnapshotHistory(
	ctx context.Context,
	userID uuid.UUID,
	dataType string,
	limit int,
) ([]models.AnalyticsSnapshot, error) {
	if s.snapshots == nil {
		return []models.AnalyticsSnapshot{}, nil
	}

	snapshots, err := s.snapshots.ListRecent(ctx, userID, dataType, limit)
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return []models.AnalyticsSnapshot{}, nil
		}
		return nil, err
	}
	if snapshots == nil {
		snapshots = []models.AnalyticsSnapshot{}
	}
	return snapshots, nil
}

// fetchFeatures resolves audio features for a track list and drops absent
// records.
func (s *Service) fetchFeatures(ctx context.Context, tracks []models.Track) ([]models.AudioFeatures, error) {
	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}

	records, err := s.provider.AudioFeaturesBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	features := make([]models.AudioFeatures, 0, len(records))
	for _, record := range records {
		if record != nil {
			features = append(features, *record)
		}
	}
	return features, nil
}

// persistSnapshot stores a computed result for historical reference.
// Failures are logged, never propagated.
func (s *Service) persistSnapshot(ctx context.Context, userID uuid.UUID, dataType, timeRange string, payload any) {
	if s.snapshots == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal analytics snapshot")
		return
	}

	snapshot := &models.AnalyticsSnapshot{
		UserID:    userID,
		DataType:  dataType,
		TimeRange: timeRange,
		Data:      data,
		ExpiresAt: time.Now().Add(cache.UserAnalyticsTTL),
	}
	if err := s.snapshots.Insert(ctx, snapshot); err != nil {
		if !errors.Is(err, repository.ErrUnavailable) {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to persist analytics snapshot")
		}
	}
}
