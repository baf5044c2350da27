// Package openmeteo implements the Open-Meteo hourly UV forecast adapter.
package openmeteo

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

const (
	// ProviderName identifies this UV provider.
	ProviderName = string(uv.KindOpenMeteo)

	// DefaultBaseURL is the Open-Meteo API base URL.
	DefaultBaseURL = "https://api.open-meteo.com"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client. It needs no API key.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Enabled always reports true.
func (c *Client) Enabled() bool {
	return true
}

// Fetch returns hourly UV samples for the requested day, labelled in q.Timezone.
func (c *Client) Fetch(ctx context.Context, q uv.Query) ([]uv.Sample, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("hourly", "uv_index,uv_index_clear_sky")
	params.Set("timezone", q.Timezone)
	params.Set("start_date", q.Date)
	params.Set("end_date", q.Date)

	var resp forecastResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/v1/forecast?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	return resp.toSamples(), nil
}

// toSamples pairs hour labels with UV values, preferring uv_index and
// falling back to the clear-sky series when uv_index is empty.
func (r *forecastResponse) toSamples() []uv.Sample {
	values := r.Hourly.UVIndex
	if len(values) == 0 {
		values = r.Hourly.UVIndexClearSky
	}

	n := min(len(r.Hourly.Time), len(values))
	samples := make([]uv.Sample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, uv.Sample{
			Time:  r.Hourly.Time[i],
			Value: uv.Clamp(values[i]),
		})
	}
	return samples
}

// Open-Meteo API response types

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    struct {
		Time            []string   `json:"time"`
		UVIndex         []*float64 `json:"uv_index"`
		UVIndexClearSky []*float64 `json:"uv_index_clear_sky"`
	} `json:"hourly"`
}
