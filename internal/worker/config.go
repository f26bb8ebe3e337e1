// Package worker runs background jobs that keep the stored plant status in
// step with the weather.
package worker

import (
	"time"

	"github.com/spouty/spouty/internal/config"
)

// RefreshConfig holds configuration for the status refresh job.
type RefreshConfig struct {
	// Interval between scheduled refreshes.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds a single refresh, including the weather lookup.
	// Default: 30 seconds
	Timeout time.Duration

	// RunOnStart triggers a refresh as soon as the loop starts.
	RunOnStart bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:   15 * time.Minute,
		Timeout:    30 * time.Second,
		RunOnStart: true,
	}
}

// withDefaults fills zero fields from DefaultRefreshConfig.
func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Config is the full worker configuration.
type Config struct {
	Refresh RefreshConfig

	// PubSubProject and PubSubSubscription enable the job trigger when both
	// are set.
	PubSubProject      string
	PubSubSubscription string
}

// PubSubEnabled reports whether the Pub/Sub job trigger is configured.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProject != "" && c.PubSubSubscription != ""
}

// ConfigFromEnv reads the worker configuration from the environment.
func ConfigFromEnv() Config {
	def := DefaultRefreshConfig()
	return Config{
		Refresh: RefreshConfig{
			Interval:   config.Duration("REFRESH_INTERVAL", def.Interval),
			Timeout:    config.Duration("REFRESH_TIMEOUT", def.Timeout),
			RunOnStart: config.Bool("REFRESH_ON_START", def.RunOnStart),
		},
		PubSubProject:      config.String("PUBSUB_PROJECT_ID", config.String("GOOGLE_CLOUD_PROJECT", "")),
		PubSubSubscription: config.String("PUBSUB_SUBSCRIPTION", ""),
	}
}
