package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the refresh subscription.
const (
	JobCacheRefresh = "cache_refresh"
	JobHealthCheck  = "health_check"
)

// Permanent message errors; redelivery cannot fix them.
var (
	ErrUnknownJob       = errors.New("unknown job type")
	ErrMalformedMessage = errors.New("malformed message")
)

// healthCheckPoint is refreshed by health_check messages without coordinates.
var healthCheckPoint = Point{Lat: 40.4168, Lon: -3.7038, Label: "Madrid"}

// RefreshMessage is the JSON body of a worker Pub/Sub message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Invalidate drops the cache before a cache_refresh run.
	Invalidate bool `json:"invalidate,omitempty"`

	// Lat/Lon select the health_check location.
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// JobRunner executes decoded worker messages.
type JobRunner struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewJobRunner creates a JobRunner around job.
func NewJobRunner(job *RefreshJob, logger zerolog.Logger) *JobRunner {
	return &JobRunner{job: job, logger: logger}
}

// Handle decodes and runs one message body, returning its job type.
func (r *JobRunner) Handle(ctx context.Context, data []byte) (string, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobCacheRefresh:
		return msg.JobType, r.cacheRefresh(ctx, msg)
	case JobHealthCheck:
		return msg.JobType, r.healthCheck(ctx, msg)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (r *JobRunner) cacheRefresh(ctx context.Context, msg RefreshMessage) error {
	if msg.Invalidate {
		r.logger.Info().Msg("invalidating forecast cache before refresh")
		r.job.InvalidateCache()
	}

	result := r.job.Run(ctx)

	// Consider it successful if at least half the points reached consensus.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (r *JobRunner) healthCheck(ctx context.Context, msg RefreshMessage) error {
	point := healthCheckPoint
	if msg.Lat != nil && msg.Lon != nil {
		point = Point{Lat: *msg.Lat, Lon: *msg.Lon}
	}
	if !validPoint(point) {
		return fmt.Errorf("%w: health check coordinates %v,%v", ErrMalformedMessage, point.Lat, point.Lon)
	}

	pr := r.job.RefreshPoint(ctx, point)
	if !pr.Success {
		return fmt.Errorf("health check failed at %.4f,%.4f: %d errors", point.Lat, point.Lon, len(pr.Errors))
	}

	r.logger.Debug().Float64("lat", point.Lat).Float64("lon", point.Lon).Msg("health check passed")
	return nil
}

// PubSubHandler receives worker jobs from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           *JobRunner
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           *JobRunner
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// A cache_refresh run can take minutes; keep few messages in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.process(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// process runs one message and reports whether it should be acked.
func (h *PubSubHandler) process(ctx context.Context, id string, data []byte) bool {
	start := time.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	jobType, err := h.runner.Handle(ctx, data)
	switch {
	case err == nil:
		logger.Info().Str("job_type", jobType).Dur("duration", time.Since(start)).Msg("job completed successfully")
		return true
	case errors.Is(err, ErrUnknownJob), errors.Is(err, ErrMalformedMessage):
		logger.Warn().Err(err).Str("job_type", jobType).Msg("dropping message")
		return true
	default:
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		return false
	}
}
