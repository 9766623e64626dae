package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenreCount is one entry of the genre frequency ranking.
type GenreCount struct {
	Genre      string `json:"genre"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// AudioFeaturesSummary holds per-feature means and 10-bucket value
// distributions for a set of tracks.
type AudioFeaturesSummary struct {
	Averages      map[string]float64 `json:"averages"`
	Distributions map[string][]int   `json:"distributions"`
}

// FeatureStats is the full statistical summary of a single feature: used by
// track-list and artist audio profiles.
type FeatureStats struct {
	Average      float64 `json:"average"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Distribution []int   `json:"distribution"`
}

// ListeningPatterns holds the fixed time-of-day and day-of-week frequency
// tables derived from play history.
type ListeningPatterns struct {
	TimeOfDay map[string]int `json:"timeOfDay"`
	DayOfWeek map[string]int `json:"dayOfWeek"`
}

// MoodProfile is the set of five 0-100 scores derived from averaged audio
// features, relabeled for end-user presentation.
type MoodProfile struct {
	Happy        int `json:"happy"`
	Energetic    int `json:"energetic"`
	Danceable    int `json:"danceable"`
	Acoustic     int `json:"acoustic"`
	Instrumental int `json:"instrumental"`
}

// MusicAnalytics is the complete computed analytics payload for a user.
type MusicAnalytics struct {
	TopGenres            []GenreCount         `json:"topGenres"`
	AudioFeaturesSummary AudioFeaturesSummary `json:"audioFeaturesSummary"`
	ListeningPatterns    ListeningPatterns    `json:"listeningPatterns"`
	DiversityScore       int                  `json:"diversityScore"`
	MoodProfile          MoodProfile          `json:"moodProfile"`
	// Message explains a degraded (empty) payload; omitted otherwise.
	Message string `json:"message,omitempty"`
}

// EmptyMusicAnalytics returns the documented all-zero analytics payload
// served when the user lacks enough listening history.
func EmptyMusicAnalytics(message string) *MusicAnalytics {
	return &MusicAnalytics{
		TopGenres: []GenreCount{},
		AudioFeaturesSummary: AudioFeaturesSummary{
			Averages:      map[string]float64{},
			Distributions: map[string][]int{},
		},
		ListeningPatterns: EmptyListeningPatterns(),
		MoodProfile:       MoodProfile{},
		Message:           message,
	}
}

// EmptyListeningPatterns returns pattern tables with every fixed bucket
// present and zeroed.
func EmptyListeningPatterns() ListeningPatterns {
	return ListeningPatterns{
		TimeOfDay: map[string]int{
			"morning": 0, "afternoon": 0, "evening": 0, "night": 0,
		},
		DayOfWeek: map[string]int{
			"monday": 0, "tuesday": 0, "wednesday": 0, "thursday": 0,
			"friday": 0, "saturday": 0, "sunday": 0,
		},
	}
}

// TrackInsight is the demo-mode analysis of a single track.
type TrackInsight struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Artist        string        `json:"artist"`
	Popularity    int           `json:"popularity"`
	AudioFeatures AudioFeatures `json:"audioFeatures"`
	Genres        []string      `json:"genres"`
}

// ArtistSummary is the condensed artist record in an artist analysis.
type ArtistSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
	Genres     []string `json:"genres"`
}

// TrackSummary is the condensed track record in an artist analysis.
type TrackSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// ArtistAnalysis is the demo-mode analysis of an artist: the profile plus
// the audio profile of their top tracks.
type ArtistAnalysis struct {
	Artist       ArtistSummary           `json:"artist"`
	AudioProfile map[string]FeatureStats `json:"audioProfile"`
	TopTracks    []TrackSummary          `json:"topTracks"`
}

// RankedTrack pairs a track with its rank and audio features in a top-tracks
// analysis. AudioFeatures is nil when the provider returned none for the
// track.
type RankedTrack struct {
	Track
	AudioFeatures *AudioFeatures `json:"audioFeatures"`
	Rank          int            `json:"rank"`
}

// TopTracksAnalysis is the computed analysis of a user's top tracks for one
// time range.
type TopTracksAnalysis struct {
	Tracks      []RankedTrack           `json:"tracks"`
	Summary     map[string]FeatureStats `json:"summary"`
	TimeRange   TimeRange               `json:"timeRange"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// RecommendationSeeds are the track and artist identifiers passed to the
// provider's recommendation endpoint.
type RecommendationSeeds struct {
	TrackIDs  []string `json:"trackIds"`
	ArtistIDs []string `json:"artistIds"`
}

// RecommendationBasis documents the inputs a recommendation set was derived
// from.
type RecommendationBasis struct {
	TopGenres   []GenreCount `json:"topGenres"`
	MoodProfile MoodProfile  `json:"moodProfile"`
	SeedTracks  []Track      `json:"seedTracks"`
}

// Recommendations is the response payload of the recommendation endpoint.
type Recommendations struct {
	Tracks  []Track             `json:"tracks"`
	BasedOn RecommendationBasis `json:"basedOn"`
	// Message explains an empty result; omitted otherwise.
	Message string `json:"message,omitempty"`
}

// AnalyticsSnapshot is a persisted, timestamped copy of a computed analytics
// result, kept for historical reference. Snapshots are write-once: a new
// computation supersedes rather than mutates.
type AnalyticsSnapshot struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	DataType  string          `json:"dataType"`
	TimeRange string          `json:"timeRange"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Snapshot data-type labels.
const (
	SnapshotFullAnalytics = "full-analytics"
	SnapshotTopTracks     = "top-tracks"
)
