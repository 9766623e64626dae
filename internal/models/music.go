// Package models defines the domain entities shared across the SpotifyScope
// backend: provider catalog data, computed analytics, users, and sessions.
// Provider-sourced structures mirror the Spotify wire format so they can be
// decoded directly from API responses.
package models

import "time"

// Image is a provider-hosted image in one of several sizes.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ArtistRef is the lightweight artist reference embedded in tracks.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumRef is the lightweight album reference embedded in tracks.
type AlbumRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Images      []Image `json:"images,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
}

// Track is a catalog track as returned by the provider. Tracks are immutable
// once fetched and never persisted beyond their cache TTL.
type Track struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []ArtistRef `json:"artists"`
	Album      AlbumRef    `json:"album"`
	DurationMS int         `json:"duration_ms"`
	Popularity int         `json:"popularity"`
	PreviewURL string      `json:"preview_url,omitempty"`
}

// PrimaryArtistID returns the ID of the track's first-listed artist, or an
// empty string when the artist list is empty.
func (t Track) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].ID
}

// Followers carries the provider's follower counter.
type Followers struct {
	Total int `json:"total"`
}

// Artist is a catalog artist. The genre set is unordered and may be empty.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	Popularity int       `json:"popularity"`
	Followers  Followers `json:"followers"`
	Images     []Image   `json:"images,omitempty"`
}

// AudioFeatures is the per-track record of continuous perceptual
// descriptors. All fields except Tempo and the categorical key/mode/
// time-signature values are normalized to [0,1]. The provider may return
// null for a track; callers must filter absent entries before aggregation
// rather than treating them as zero.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	DurationMS       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}

// Value returns the named continuous feature. Unknown names return 0 and
// false so aggregation code can skip them.
func (f AudioFeatures) Value(name string) (float64, bool) {
	switch name {
	case FeatureDanceability:
		return f.Danceability, true
	case FeatureEnergy:
		return f.Energy, true
	case FeatureValence:
		return f.Valence, true
	case FeatureAcousticness:
		return f.Acousticness, true
	case FeatureInstrumentalness:
		return f.Instrumentalness, true
	case FeatureSpeechiness:
		return f.Speechiness, true
	case FeatureLiveness:
		return f.Liveness, true
	case FeatureTempo:
		return f.Tempo, true
	}
	return 0, false
}

// Continuous audio feature names used in aggregation.
const (
	FeatureDanceability     = "danceability"
	FeatureEnergy           = "energy"
	FeatureValence          = "valence"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureSpeechiness      = "speechiness"
	FeatureLiveness         = "liveness"
	FeatureTempo            = "tempo"
)

// PlayHistoryItem is a single entry of the user's recently-played feed.
type PlayHistoryItem struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// Playlist is a user playlist summary.
type Playlist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Owner  string  `json:"owner,omitempty"`
	Tracks int     `json:"total_tracks"`
	Images []Image `json:"images,omitempty"`
	Public bool    `json:"public"`
}

// SpotifyProfile is the provider's view of the authenticated user.
type SpotifyProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Images      []Image   `json:"images,omitempty"`
	Followers   Followers `json:"followers"`
	Country     string    `json:"country,omitempty"`
}

// TimeRange is a provider-defined window for "top items" queries.
type TimeRange string

const (
	// TimeRangeShort covers roughly the last four weeks.
	TimeRangeShort TimeRange = "short_term"
	// TimeRangeMedium covers roughly the last six months.
	TimeRangeMedium TimeRange = "medium_term"
	// TimeRangeLong covers the listener's full history.
	TimeRangeLong TimeRange = "long_term"
)

// Valid reports whether the time range is one of the provider's windows.
func (r TimeRange) Valid() bool {
	switch r {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return true
	}
	return false
}
