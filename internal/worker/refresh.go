package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/plant"
)

// StatusRefresher re-evaluates the stored reading. device.Service
// implements it.
type StatusRefresher interface {
	RefreshStatus(ctx context.Context) (plant.Status, bool, error)
}

// RefreshJob periodically re-evaluates the plant status so it follows
// day/night and rain without a new sensor reading.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	refresher StatusRefresher

	// Metrics
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	SkippedRefreshes  int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration

	LastStatus plant.Status
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Refresher StatusRefresher
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		refresher: cfg.Refresher,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one refresh.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// HasReading is false when the device has not reported yet; nothing is
	// evaluated in that case.
	HasReading bool
	Status     plant.Status
	Err        error
}

// Run refreshes the status once.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	result := &RefreshResult{StartTime: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Debug().Msg("starting status refresh")

	status, hasReading, err := j.refresher.RefreshStatus(ctx)
	result.Status = status
	result.HasReading = hasReading
	result.Err = err

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	switch {
	case err != nil:
		j.logger.Error().Err(err).
			Dur("duration", result.Duration).
			Msg("status refresh failed")
	case !hasReading:
		j.logger.Info().Msg("no sensor reading stored yet, skipping status refresh")
	default:
		j.logger.Info().
			Dur("duration", result.Duration).
			Str("plant_status", string(status)).
			Msg("status refresh completed")
	}

	return result
}

// Start runs the job every Interval until ctx is cancelled.
func (j *RefreshJob) Start(ctx context.Context) {
	j.logger.Info().
		Dur("interval", j.config.Interval).
		Msg("starting status refresh loop")

	if j.config.RunOnStart {
		j.Run(ctx)
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("status refresh loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	switch {
	case result.Err != nil:
		j.metrics.FailedRefreshes++
	case !result.HasReading:
		j.metrics.SkippedRefreshes++
	default:
		j.metrics.SuccessfulRefresh++
		j.metrics.LastStatus = result.Status
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		SkippedRefreshes:    j.metrics.SkippedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
		LastStatus:          j.metrics.LastStatus,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"skipped_refreshes":     m.SkippedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"last_status":           string(m.LastStatus),
	}
}
