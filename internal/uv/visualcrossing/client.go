// Package visualcrossing implements the Visual Crossing timeline adapter.
package visualcrossing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

const (
	// ProviderName identifies this UV provider.
	ProviderName = string(uv.KindVisualCrossing)

	// DefaultBaseURL is the Visual Crossing API base URL.
	DefaultBaseURL = "https://weather.visualcrossing.com"

	// APIKeyEnv names the credential variable.
	APIKeyEnv = "VISUALCROSSING_API_KEY"

	timelinePath = "/VisualCrossingWebServices/rest/services/timeline"
)

// ClientConfig holds configuration for the Visual Crossing client.
type ClientConfig struct {
	// APIKey is the Visual Crossing API key. The adapter is disabled without it.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Visual Crossing).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Visual Crossing API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Visual Crossing client.
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

// Fetch returns the hourly UV index of the first day in the timeline.
// Hours without a datetime or uvindex are skipped.
func (c *Client) Fetch(ctx context.Context, q uv.Query) ([]uv.Sample, error) {
	if !c.Enabled() {
		return nil, uv.DisabledError(APIKeyEnv)
	}

	location := strconv.FormatFloat(q.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(q.Lon, 'f', -1, 64)

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("include", "hours")
	params.Set("elements", "datetime,uvindex")

	endpoint := fmt.Sprintf("%s%s/%s/%s?%s",
		c.baseURL, timelinePath, location, q.Date, params.Encode())

	var resp timelineResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp.Days) == 0 {
		return []uv.Sample{}, nil
	}

	hours := resp.Days[0].Hours
	samples := make([]uv.Sample, 0, len(hours))
	for _, h := range hours {
		// datetime is HH:MM:SS in the location's local time.
		if len(h.Datetime) < 5 || h.UVIndex == nil {
			continue
		}
		samples = append(samples, uv.Sample{
			Time:  q.Date + "T" + h.Datetime[:5],
			Value: uv.Clamp(h.UVIndex),
		})
	}
	return samples, nil
}

// Visual Crossing API response types

type timelineResponse struct {
	ResolvedAddress string `json:"resolvedAddress"`
	Timezone        string `json:"timezone"`
	Days            []struct {
		Datetime string `json:"datetime"`
		Hours    []struct {
			Datetime string   `json:"datetime"`
			UVIndex  *float64 `json:"uvindex"`
		} `json:"hours"`
	} `json:"days"`
}
