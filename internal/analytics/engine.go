// Package analytics computes listening analytics from provider data. The
// aggregation functions in this file are pure: they operate solely on their
// arguments, never touch the network or storage, and are safe to call
// concurrently.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/Luuchoh/SpotifyScope/internal/models"
)

const (
	// topGenreLimit truncates the genre ranking.
	topGenreLimit = 10
	// histogramBuckets is the fixed distribution resolution.
	histogramBuckets = 10
	// maxSeedTracks bounds recommendation seed selection.
	maxSeedTracks = 2
)

// summaryFeatures are the features aggregated in the user analytics
// summary. Tempo rides along even though it is not 0-1 scaled; the
// histogram buckets are min-max relative so it still distributes.
var summaryFeatures = []string{
	models.FeatureDanceability,
	models.FeatureEnergy,
	models.FeatureValence,
	models.FeatureAcousticness,
	models.FeatureInstrumentalness,
	models.FeatureSpeechiness,
	models.FeatureTempo,
}

// profileFeatures are the 0-1 scaled features reported in per-item audio
// profiles.
var profileFeatures = []string{
	models.FeatureDanceability,
	models.FeatureEnergy,
	models.FeatureValence,
	models.FeatureAcousticness,
	models.FeatureInstrumentalness,
	models.FeatureSpeechiness,
}

// diversityFeatures are the features whose variance feeds the diversity
// score.
var diversityFeatures = []string{
	models.FeatureDanceability,
	models.FeatureEnergy,
	models.FeatureValence,
	models.FeatureAcousticness,
}

// RankGenres counts genre mentions across artists and returns the top ten,
// ordered by descending count. Ties keep first-encountered order. Each
// percentage is round(count/total*100), 0 when there are no mentions.
func RankGenres(artists []models.Artist) []models.GenreCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	total := 0

	for _, artist := range artists {
		for _, genre := range artist.Genres {
			if genre == "" {
				continue
			}
			if _, seen := counts[genre]; !seen {
				order = append(order, genre)
			}
			counts[genre]++
			total++
		}
	}

	ranking := make([]models.GenreCount, 0, len(order))
	for _, genre := range order {
		entry := models.GenreCount{Genre: genre, Count: counts[genre]}
		if total > 0 {
			entry.Percentage = int(math.Round(float64(entry.Count) / float64(total) * 100))
		}
		ranking = append(ranking, entry)
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Count > ranking[j].Count
	})

	if len(ranking) > topGenreLimit {
		ranking = ranking[:topGenreLimit]
	}
	return ranking
}

// SummarizeAudioFeatures computes per-feature means and ten-bucket value
// distributions. An empty feature list yields empty maps, never an error.
func SummarizeAudioFeatures(features []models.AudioFeatures, names []string) models.AudioFeaturesSummary {
	summary := models.AudioFeaturesSummary{
		Averages:      make(map[string]float64),
		Distributions: make(map[string][]int),
	}
	if len(features) == 0 {
		return summary
	}

	for _, name := range names {
		values := featureValues(features, name)
		if len(values) == 0 {
			continue
		}
		summary.Averages[name] = mean(values)
		summary.Distributions[name] = histogram(values)
	}
	return summary
}

// AudioProfile computes the full statistical summary (average, min, max,
// distribution) for each named feature.
func AudioProfile(features []models.AudioFeatures, names []string) map[string]models.FeatureStats {
	profile := make(map[string]models.FeatureStats)
	if len(features) == 0 {
		return profile
	}

	for _, name := range names {
		values := featureValues(features, name)
		if len(values) == 0 {
			continue
		}
		minVal, maxVal := bounds(values)
		profile[name] = models.FeatureStats{
			Average:      mean(values),
			Min:          minVal,
			Max:          maxVal,
			Distribution: histogram(values),
		}
	}
	return profile
}

// AnalyzeListeningPatterns buckets play history into fixed time-of-day and
// day-of-week frequency tables. Entries with a zero timestamp are skipped.
func AnalyzeListeningPatterns(history []models.PlayHistoryItem) models.ListeningPatterns {
	patterns := models.EmptyListeningPatterns()

	for _, item := range history {
		if item.PlayedAt.IsZero() {
			continue
		}

		hour := item.PlayedAt.Hour()
		switch {
		case hour >= 6 && hour < 12:
			patterns.TimeOfDay["morning"]++
		case hour >= 12 && hour < 18:
			patterns.TimeOfDay["afternoon"]++
		case hour >= 18 && hour < 22:
			patterns.TimeOfDay["evening"]++
		default:
			patterns.TimeOfDay["night"]++
		}

		weekday := strings.ToLower(item.PlayedAt.Weekday().String())
		patterns.DayOfWeek[weekday]++
	}
	return patterns
}

// DiversityScore combines genre breadth and audio-feature variance into a
// 0-100 score. Either input being empty yields 0.
func DiversityScore(genres []string, features []models.AudioFeatures) int {
	if len(genres) == 0 || len(features) == 0 {
		return 0
	}

	genreComponent := math.Min(float64(len(genres))*2, 50)

	varianceSum := 0.0
	counted := 0
	for _, name := range diversityFeatures {
		values := featureValues(features, name)
		if len(values) == 0 {
			continue
		}
		varianceSum += variance(values)
		counted++
	}

	featureComponent := 0.0
	if counted > 0 {
		featureComponent = math.Min(varianceSum/float64(counted)*200, 50)
	}

	return int(math.Round(genreComponent + featureComponent))
}

// MoodProfile maps averaged audio features onto the five presentation
// scores, each scaled to 0-100 and rounded. Empty input yields all zeros.
func MoodProfile(features []models.AudioFeatures) models.MoodProfile {
	if len(features) == 0 {
		return models.MoodProfile{}
	}

	score := func(name string) int {
		values := featureValues(features, name)
		if len(values) == 0 {
			return 0
		}
		return int(math.Round(mean(values) * 100))
	}

	return models.MoodProfile{
		Happy:        score(models.FeatureValence),
		Energetic:    score(models.FeatureEnergy),
		Danceable:    score(models.FeatureDanceability),
		Acoustic:     score(models.FeatureAcousticness),
		Instrumental: score(models.FeatureInstrumentalness),
	}
}

// SelectRecommendationSeeds picks up to two tracks, in existing rank order,
// and their primary artists as recommendation seeds.
func SelectRecommendationSeeds(topTracks []models.Track) models.RecommendationSeeds {
	seeds := models.RecommendationSeeds{
		TrackIDs:  []string{},
		ArtistIDs: []string{},
	}

	for _, track := range topTracks {
		if len(seeds.TrackIDs) == maxSeedTracks {
			break
		}
		seeds.TrackIDs = append(seeds.TrackIDs, track.ID)
		if artistID := track.PrimaryArtistID(); artistID != "" {
			seeds.ArtistIDs = append(seeds.ArtistIDs, artistID)
		}
	}
	return seeds
}

// UniqueGenres collects the distinct genre labels across artists in
// first-encountered order.
func UniqueGenres(artists []models.Artist) []string {
	seen := make(map[string]struct{})
	genres := make([]string, 0)
	for _, artist := range artists {
		for _, genre := range artist.Genres {
			if genre == "" {
				continue
			}
			if _, ok := seen[genre]; ok {
				continue
			}
			seen[genre] = struct{}{}
			genres = append(genres, genre)
		}
	}
	return genres
}

// featureValues extracts one named feature across all records.
func featureValues(features []models.AudioFeatures, name string) []float64 {
	values := make([]float64, 0, len(features))
	for _, f := range features {
		if v, ok := f.Value(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// histogram assigns values to ten equal-width buckets between the observed
// min and max. A zero-width range places everything in bucket 0, and the
// top edge belongs to the last bucket.
func histogram(values []float64) []int {
	buckets := make([]int, histogramBuckets)
	if len(values) == 0 {
		return buckets
	}

	minVal, maxVal := bounds(values)
	width := (maxVal - minVal) / histogramBuckets
	if width == 0 {
		buckets[0] = len(values)
		return buckets
	}

	for _, v := range values {
		idx := int((v - minVal) / width)
		if idx >= histogramBuckets {
			idx = histogramBuckets - 1
		}
		buckets[idx]++
	}
	return buckets
}

func bounds(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}
