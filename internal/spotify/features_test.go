package spotify_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioFeaturesBulkBatchesAndPreservesOrder(t *testing.T) {
	var batches atomic.Int32
	// The test client is configured with a batch size of two.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		require.LessOrEqual(t, len(ids), 2)

		records := make([]string, 0, len(ids))
		for _, id := range ids {
			records = append(records, fmt.Sprintf(`{"id":%q,"energy":0.5}`, id))
		}
		fmt.Fprintf(w, `{"audio_features":[%s]}`, strings.Join(records, ","))
	}))

	ids := []string{"t1", "t2", "t3", "t4", "t5"}
	features, err := client.AudioFeaturesBulk(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, features, 5)

	for i, f := range features {
		require.NotNil(t, f)
		assert.Equal(t, ids[i], f.ID)
	}
	assert.Equal(t, int32(3), batches.Load())
}

func TestAudioFeaturesBulkNullRecords(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"audio_features":[{"id":"t1","energy":0.9},null]}`)
	}))

	features, err := client.AudioFeaturesBulk(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.NotNil(t, features[0])
	assert.Nil(t, features[1])
}

func TestAudioFeaturesBulkFailedBatchYieldsNils(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		if strings.Contains(ids, "t3") {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"status":500,"message":"server error"}}`)
			return
		}
		records := make([]string, 0)
		for _, id := range strings.Split(ids, ",") {
			records = append(records, fmt.Sprintf(`{"id":%q}`, id))
		}
		fmt.Fprintf(w, `{"audio_features":[%s]}`, strings.Join(records, ","))
	}))

	features, err := client.AudioFeaturesBulk(context.Background(), []string{"t1", "t2", "t3", "t4"})
	require.NoError(t, err)
	require.Len(t, features, 4)

	assert.NotNil(t, features[0])
	assert.NotNil(t, features[1])
	assert.Nil(t, features[2])
	assert.Nil(t, features[3])
}

func TestAudioFeaturesBulkEmptyInput(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty input")
	}))

	features, err := client.AudioFeaturesBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, features)
}
