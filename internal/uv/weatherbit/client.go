// Package weatherbit implements the Weatherbit adapter. Weatherbit's daily
// forecast carries one UV value per day, which is spread over all 24 hours.
package weatherbit

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
	ProviderName = string(uv.KindWeatherbit)

	// DefaultBaseURL is the Weatherbit API base URL.
	DefaultBaseURL = "https://api.weatherbit.io"

	// APIKeyEnv names the credential variable.
	APIKeyEnv = "WEATHERBIT_API_KEY"

	hoursPerDay = 24
)

// ClientConfig holds configuration for the Weatherbit client.
type ClientConfig struct {
	// APIKey is the Weatherbit API key. The adapter is disabled without it.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Weatherbit).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Weatherbit API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Weatherbit client.
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
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Fetch returns 24 hourly samples carrying the daily UV value for q.Date.
// A day missing from the forecast yields no samples.
func (c *Client) Fetch(ctx context.Context, q uv.Query) ([]uv.Sample, error) {
	if !c.Enabled() {
		return nil, uv.DisabledError(APIKeyEnv)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("key", c.apiKey)

	var resp dailyForecastResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/v2.0/forecast/daily?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	daily := resp.uvFor(q.Date)
	if daily == nil {
		c.logger.Debug().
			Str("provider", ProviderName).
			Str("date", q.Date).
			Int("days", len(resp.Data)).
			Msg("no daily uv for date")
		return []uv.Sample{}, nil
	}

	value := uv.ClampValue(*daily)
	samples := make([]uv.Sample, hoursPerDay)
	for h := range samples {
		samples[h] = uv.Sample{Time: uv.HourLabel(q.Date, h), Value: uv.Float(value)}
	}
	return samples, nil
}

// uvFor returns the UV value of the first day matching date.
func (r *dailyForecastResponse) uvFor(date string) *float64 {
	for _, d := range r.Data {
		if d.ValidDate == date {
			return d.UV
		}
	}
	return nil
}

// Weatherbit API response types

type dailyForecastResponse struct {
	CityName string `json:"city_name"`
	Timezone string `json:"timezone"`
	Data     []struct {
		ValidDate string   `json:"valid_date"`
		UV        *float64 `json:"uv"`
		MaxTemp   float64  `json:"max_temp"`
	} `json:"data"`
}
