package openuv_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/uv"
	"github.com/uvconsensus/uvconsensus/internal/uv/openuv"
)

var testQuery = uv.Query{Lat: 51.5074, Lon: -0.1278, Date: "2024-06-01", Timezone: "Europe/London"}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/uv", r.URL.Path)
		assert.Equal(t, "51.5074", r.URL.Query().Get("lat"))
		assert.Equal(t, "-0.1278", r.URL.Query().Get("lng"))
		assert.Equal(t, "test-token", r.Header.Get("x-access-token"))

		_, _ = w.Write([]byte(`{"result": {"uv": 6.4, "uv_time": "2024-06-01T11:32:10.000Z", "uv_max": 7.1}}`))
	}))
	defer server.Close()

	client := openuv.NewClient(openuv.ClientConfig{APIKey: "test-token", BaseURL: server.URL})

	samples, err := client.Fetch(context.Background(), testQuery)
	require.NoError(t, err)

	require.Len(t, samples, 1)
	assert.Equal(t, "2024-06-01T12:00", samples[0].Time)
	assert.Equal(t, 6.4, *samples[0].Value)
}

func TestClient_Fetch_NoValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {}}`))
	}))
	defer server.Close()

	client := openuv.NewClient(openuv.ClientConfig{APIKey: "test-token", BaseURL: server.URL})

	samples, err := client.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestClient_Fetch_Disabled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := openuv.NewClient(openuv.ClientConfig{BaseURL: server.URL})

	_, err := client.Fetch(context.Background(), testQuery)
	require.Error(t, err)
	assert.ErrorIs(t, err, uv.ErrProviderDisabled)
	assert.Equal(t, "disabled (no OPENUV_API_KEY)", err.Error())
	assert.False(t, client.Enabled())
	assert.Zero(t, calls.Load(), "disabled adapter makes no request")
}

func TestClient_Fetch_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "Daily API quota exceeded"}`))
	}))
	defer server.Close()

	client := openuv.NewClient(openuv.ClientConfig{APIKey: "test-token", BaseURL: server.URL})

	_, err := client.Fetch(context.Background(), testQuery)
	require.Error(t, err)
	assert.Equal(t, "unexpected status code: 403", err.Error())
}
