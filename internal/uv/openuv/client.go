// Package openuv implements the OpenUV adapter. The free tier only exposes the
// current reading, which is reported as a single noon sample.
package openuv

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

const (
	// ProviderName identifies this UV provider.
	ProviderName = string(uv.KindOpenUV)

	// DefaultBaseURL is the OpenUV API base URL.
	DefaultBaseURL = "https://api.openuv.io"

	// APIKeyEnv names the credential variable.
	APIKeyEnv = "OPENUV_API_KEY"
)

// ClientConfig holds configuration for the OpenUV client.
type ClientConfig struct {
	// APIKey is the OpenUV access token. The adapter is disabled without it.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenUV).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenUV API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenUV client.
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

// Fetch returns the current UV reading as a noon sample on q.Date.
func (c *Client) Fetch(ctx context.Context, q uv.Query) ([]uv.Sample, error) {
	if !c.Enabled() {
		return nil, uv.DisabledError(APIKeyEnv)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(q.Lon, 'f', -1, 64))

	header := http.Header{}
	header.Set("x-access-token", c.apiKey)

	var resp uvResponse
	if err := c.httpClient.GetJSONWithHeaders(ctx, c.baseURL+"/api/v1/uv?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	if resp.Result.UV == nil {
		c.logger.Debug().Str("provider", ProviderName).Msg("response carried no uv value")
		return []uv.Sample{}, nil
	}

	return []uv.Sample{{
		Time:  uv.NoonLabel(q.Date),
		Value: uv.Clamp(resp.Result.UV),
	}}, nil
}

// OpenUV API response types

type uvResponse struct {
	Result struct {
		UV     *float64 `json:"uv"`
		UVTime string   `json:"uv_time"`
		UVMax  *float64 `json:"uv_max"`
	} `json:"result"`
}
