package spotify

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// joinIDs renders an ID list as the provider's comma-separated form.
func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// bulkFeaturesEnvelope carries nullable per-track records, the provider
// returns null for tracks without a feature record.
type bulkFeaturesEnvelope struct {
	AudioFeatures []*models.AudioFeatures `json:"audio_features"`
}

// AudioFeaturesBulk fetches audio feature records for a list of track IDs.
// Requests are split into provider-sized batches issued concurrently. The
// result preserves input order and length: a track the provider has no
// record for, or whose whole batch failed, yields a nil entry rather than
// failing the call.
func (c *Client) AudioFeaturesBulk(ctx context.Context, trackIDs []string) ([]*models.AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}

	tok, err := c.appToken(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*models.AudioFeatures, len(trackIDs))

	var wg sync.WaitGroup
	for start := 0; start < len(trackIDs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		wg.Add(1)
		go func(offset int, batch []string) {
			defer wg.Done()

			features, err := c.audioFeaturesBatch(ctx, tok, batch)
			if err != nil {
				c.logger.WithError(err).WithField("batch_size", len(batch)).
					Warn("Audio features batch failed, continuing without it")
				return
			}
			for i, f := range features {
				if offset+i < len(results) {
					results[offset+i] = f
				}
			}
		}(start, trackIDs[start:end])
	}
	wg.Wait()

	return results, nil
}

// audioFeaturesBatch fetches one provider-sized batch.
func (c *Client) audioFeaturesBatch(
	ctx context.Context,
	accessToken string,
	trackIDs []string,
) ([]*models.AudioFeatures, error) {
	query := url.Values{}
	query.Set("ids", joinIDs(trackIDs))

	var envelope bulkFeaturesEnvelope
	params := map[string]string{"ids": joinIDs(trackIDs)}
	if err := c.getJSON(ctx, accessToken, "/audio-features", query, "audio-features-bulk", params, &envelope); err != nil {
		return nil, err
	}
	return envelope.AudioFeatures, nil
}
