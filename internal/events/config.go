package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/config"
)

// Sink names accepted in EVENT_SINKS.
const (
	SinkLog    = "log"
	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"
)

// Config selects the event sinks.
type Config struct {
	Sinks         []string
	PubSubProject string
	PubSubTopic   string
	KafkaBrokers  []string
	KafkaTopic    string
}

// ConfigFromEnv reads the event configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		Sinks:         config.List("EVENT_SINKS", []string{SinkLog}),
		PubSubProject: config.String("PUBSUB_PROJECT_ID", config.String("GOOGLE_CLOUD_PROJECT", "")),
		PubSubTopic:   config.String("PUBSUB_TOPIC", "spouty-device-events"),
		KafkaBrokers:  config.List("KAFKA_BROKERS", nil),
		KafkaTopic:    config.String("KAFKA_TOPIC", "spouty.device-events"),
	}
}

// NewPublisher builds the publisher for the configured sinks. No sinks
// yields Nop.
func NewPublisher(ctx context.Context, cfg Config, logger zerolog.Logger) (Publisher, error) {
	var pubs Multi
	for _, sink := range cfg.Sinks {
		switch strings.ToLower(sink) {
		case SinkLog:
			pubs = append(pubs, NewLogPublisher(logger))
		case SinkPubSub:
			p, err := NewPubSubPublisher(ctx, cfg.PubSubProject, cfg.PubSubTopic)
			if err != nil {
				_ = pubs.Close()
				return nil, err
			}
			pubs = append(pubs, p)
		case SinkKafka:
			p, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
			if err != nil {
				_ = pubs.Close()
				return nil, err
			}
			pubs = append(pubs, p)
		case "none", "":
		default:
			_ = pubs.Close()
			return nil, fmt.Errorf("unknown event sink %q", sink)
		}
	}

	switch len(pubs) {
	case 0:
		return Nop{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}
