package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/device"
)

// Job types accepted on the subscription.
const (
	JobStatusRefresh = "status_refresh"
	JobHealthCheck   = "health_check"
)

// ErrMalformedJob is returned for payloads that are not a job message.
var ErrMalformedJob = errors.New("malformed job message")

// DeviceReader reads the device record. device.Service implements it.
type DeviceReader interface {
	Get(ctx context.Context) (*device.Record, error)
}

// JobMessage is the payload of a job trigger.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// JobHandler executes job messages independently of the transport.
type JobHandler struct {
	refreshJob *RefreshJob
	devices    DeviceReader
	logger     zerolog.Logger
}

// NewJobHandler creates a job handler.
func NewJobHandler(refreshJob *RefreshJob, devices DeviceReader, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		refreshJob: refreshJob,
		devices:    devices,
		logger:     logger,
	}
}

// Handle runs the job encoded in data. A nil error means the message is done
// and should be acked, which includes unknown job types.
func (h *JobHandler) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case JobStatusRefresh:
		return h.handleStatusRefresh(ctx)
	case JobHealthCheck:
		return h.handleHealthCheck(ctx)
	default:
		h.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (h *JobHandler) handleStatusRefresh(ctx context.Context) error {
	result := h.refreshJob.Run(ctx)
	if result.Err != nil {
		return fmt.Errorf("status refresh: %w", result.Err)
	}
	return nil
}

func (h *JobHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	if _, err := h.devices.Get(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a JobHandler.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Jobs             *JobHandler
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Jobs touch a single device, so a small window is plenty.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             cfg.Jobs,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if err := h.jobs.Handle(ctx, msg.Data); err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed")

	msg.Ack()
}
