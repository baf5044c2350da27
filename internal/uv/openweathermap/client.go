// Package openweathermap implements the OpenWeatherMap UV index adapter.
package openweathermap

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

const (
	// ProviderName identifies this UV provider.
	ProviderName = string(uv.KindOpenWeatherMap)

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// APIKeyEnv names the credential variable.
	APIKeyEnv = "OPENWEATHERMAP_API_KEY"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key. The adapter is disabled without it.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
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

// Fetch returns forecast readings that fall on q.Date in q.Timezone. When the
// forecast has none, the current reading is used as a noon sample.
func (c *Client) Fetch(ctx context.Context, q uv.Query) ([]uv.Sample, error) {
	if !c.Enabled() {
		return nil, uv.DisabledError(APIKeyEnv)
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}

	params := c.params(q)

	var forecast []uviItem
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/uvi/forecast?"+params.Encode(), &forecast); err != nil {
		return nil, err
	}

	samples := make([]uv.Sample, 0, len(forecast))
	for _, item := range forecast {
		local := time.Unix(item.Date, 0).In(loc)
		if local.Format("2006-01-02") != q.Date {
			continue
		}
		// Readings are not always on the hour, and half-hour zones shift them.
		samples = append(samples, uv.Sample{
			Time:  uv.HourLabel(q.Date, local.Hour()),
			Value: uv.Clamp(item.Value),
		})
	}

	if len(samples) > 0 {
		return samples, nil
	}

	return c.fetchCurrent(ctx, q, params), nil
}

// fetchCurrent reads the current UV index. Failures here are not errors; the
// forecast call already succeeded.
func (c *Client) fetchCurrent(ctx context.Context, q uv.Query, params url.Values) []uv.Sample {
	var current uviItem
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/uvi?"+params.Encode(), &current); err != nil {
		c.logger.Debug().
			Err(err).
			Str("provider", ProviderName).
			Msg("current uv fallback failed")
		return []uv.Sample{}
	}
	if current.Value == nil {
		return []uv.Sample{}
	}

	return []uv.Sample{{
		Time:  uv.NoonLabel(q.Date),
		Value: uv.Clamp(current.Value),
	}}
}

func (c *Client) params(q uv.Query) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	return params
}

// OpenWeatherMap API response types

type uviItem struct {
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	DateISO string   `json:"date_iso"`
	Date    int64    `json:"date"`
	Value   *float64 `json:"value"`
}
