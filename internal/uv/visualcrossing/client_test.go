package visualcrossing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/uv"
	"github.com/uvconsensus/uvconsensus/internal/uv/visualcrossing"
)

var testQuery = uv.Query{Lat: -33.8688, Lon: 151.2093, Date: "2024-12-21", Timezone: "Australia/Sydney"}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/VisualCrossingWebServices/rest/services/timeline/-33.8688,151.2093/2024-12-21", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "hours", r.URL.Query().Get("include"))

		_, _ = w.Write([]byte(`{
			"resolvedAddress": "-33.8688,151.2093",
			"timezone": "Australia/Sydney",
			"days": [{
				"datetime": "2024-12-21",
				"hours": [
					{"datetime": "11:00:00", "uvindex": 10},
					{"datetime": "12:00:00", "uvindex": 12.5},
					{"datetime": "13:00:00", "uvindex": null},
					{"datetime": "", "uvindex": 4},
					{"datetime": "14:00:00", "uvindex": -1}
				]
			}]
		}`))
	}))
	defer server.Close()

	client := visualcrossing.NewClient(visualcrossing.ClientConfig{APIKey: "test-key", BaseURL: server.URL})

	samples, err := client.Fetch(context.Background(), testQuery)
	require.NoError(t, err)

	require.Len(t, samples, 3)
	assert.Equal(t, "2024-12-21T11:00", samples[0].Time)
	assert.Equal(t, 10.0, *samples[0].Value)
	assert.Equal(t, "2024-12-21T12:00", samples[1].Time)
	assert.Equal(t, 12.5, *samples[1].Value)
	assert.Equal(t, "2024-12-21T14:00", samples[2].Time)
	assert.Equal(t, 0.0, *samples[2].Value, "negative values clamp to zero")
}

func TestClient_Fetch_NoDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"days": []}`))
	}))
	defer server.Close()

	client := visualcrossing.NewClient(visualcrossing.ClientConfig{APIKey: "test-key", BaseURL: server.URL})

	samples, err := client.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.NotNil(t, samples)
	assert.Empty(t, samples)
}

func TestClient_Fetch_Disabled(t *testing.T) {
	client := visualcrossing.NewClient(visualcrossing.ClientConfig{})

	_, err := client.Fetch(context.Background(), testQuery)
	assert.ErrorIs(t, err, uv.ErrProviderDisabled)
	assert.Equal(t, "disabled (no VISUALCROSSING_API_KEY)", err.Error())
}

func TestClient_Fetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := visualcrossing.NewClient(visualcrossing.ClientConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := client.Fetch(context.Background(), testQuery)
	require.Error(t, err)
	assert.Equal(t, "unexpected status code: 429", err.Error())
}
