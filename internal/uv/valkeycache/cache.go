// Package valkeycache stores aggregated UV forecasts in Valkey so several API
// instances and the refresh worker share one cache.
package valkeycache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"

	"github.com/uvconsensus/uvconsensus/internal/uv"
)

const (
	defaultPrefix = "uv:forecast"
	defaultTTL    = 10 * time.Minute
	scanCount     = 200
)

// Config holds configuration for the Valkey cache.
type Config struct {
	// Prefix namespaces cache keys (default: "uv:forecast").
	Prefix string

	// TTL is the expiry set on every entry (default: 10 minutes).
	TTL time.Duration

	Logger zerolog.Logger
}

// Cache is a uv.Cache backed by Valkey.
type Cache struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

var _ uv.Cache = (*Cache)(nil)

// New wraps an existing Valkey client.
func New(client valkey.Client, cfg Config) *Cache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: cfg.Logger,
	}
}

// Dial connects to addr, which is either host:port or a valkey:// / redis:// URL,
// and verifies the connection with PING.
func Dial(ctx context.Context, addr string) (valkey.Client, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing valkey url: %w", err)
		}
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("creating valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging valkey: %w", err)
	}
	return client, nil
}

// Get returns the forecast stored under key.
func (c *Cache) Get(ctx context.Context, key string) (*uv.Forecast, bool, error) {
	payload, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading forecast: %w", err)
	}

	forecast, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return forecast, true, nil
}

// Set stores forecast under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, forecast *uv.Forecast) error {
	payload, err := encode(forecast)
	if err != nil {
		return err
	}

	cmd := c.client.B().Set().Key(c.key(key)).Value(payload).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("writing forecast: %w", err)
	}
	return nil
}

// Invalidate deletes every forecast under the cache prefix.
func (c *Cache) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleted, err := c.invalidate(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Int("deleted", deleted).Msg("valkey cache invalidation incomplete")
		return
	}
	c.logger.Info().Int("deleted", deleted).Msg("valkey cache invalidated")
}

func (c *Cache) invalidate(ctx context.Context) (int, error) {
	deleted := 0
	var cursor uint64
	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(c.prefix + ":*").Count(scanCount).Build()
		entry, err := c.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return deleted, fmt.Errorf("scanning keys: %w", err)
		}

		if len(entry.Elements) > 0 {
			if err := c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return deleted, fmt.Errorf("deleting keys: %w", err)
			}
			deleted += len(entry.Elements)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Stats reports the backend and TTL. Valkey entry counts are not tracked.
func (c *Cache) Stats() uv.CacheStats {
	return uv.CacheStats{Backend: "valkey", TTL: c.ttl}
}

// Ping checks the Valkey connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close closes the underlying client.
func (c *Cache) Close() {
	c.client.Close()
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

func encode(forecast *uv.Forecast) (string, error) {
	payload, err := json.Marshal(forecast)
	if err != nil {
		return "", fmt.Errorf("encoding forecast: %w", err)
	}
	return string(payload), nil
}

func decode(payload string) (*uv.Forecast, error) {
	var forecast uv.Forecast
	if err := json.Unmarshal([]byte(payload), &forecast); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	return &forecast, nil
}
