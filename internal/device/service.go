package device

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spouty/spouty/internal/events"
	"github.com/spouty/spouty/internal/plant"
	"github.com/spouty/spouty/internal/telemetry"
)

const instrumentationName = "github.com/spouty/spouty/internal/device"

// LEDStatus is what the polling device reads back.
type LEDStatus struct {
	State       LEDState     `json:"state"`
	PlantStatus plant.Status `json:"plantStatus,omitempty"`
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	// DeviceID is the record every operation reads and writes.
	DeviceID   string
	Repository Repository
	Weather    plant.WeatherLookup
	// Publisher receives domain events. Nil disables publication.
	Publisher events.Publisher
	Logger    zerolog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service implements the device operations on top of a Repository.
type Service struct {
	deviceID  string
	repo      Repository
	weather   plant.WeatherLookup
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time

	evaluations metric.Int64Counter
}

// NewService creates a device service.
func NewService(cfg ServiceConfig) *Service {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	evaluations, err := telemetry.Meter(instrumentationName).Int64Counter(
		"plant.status.evaluations",
		metric.WithDescription("Number of plant status evaluations by resulting status"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create evaluation counter")
	}

	return &Service{
		deviceID:    cfg.DeviceID,
		repo:        cfg.Repository,
		weather:     cfg.Weather,
		publisher:   publisher,
		logger:      cfg.Logger.With().Str("device_id", cfg.DeviceID).Logger(),
		now:         now,
		evaluations: evaluations,
	}
}

// DeviceID returns the ID of the record this service manages.
func (s *Service) DeviceID() string {
	return s.deviceID
}

// Get returns the current record. A device that was never written yields
// an empty record.
func (s *Service) Get(ctx context.Context) (*Record, error) {
	record, err := s.repo.Get(ctx, s.deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, plant.Unavailable("reading device", err)
	}
	return record, nil
}

// SetLED stores the desired LED state.
func (s *Service) SetLED(ctx context.Context, state LEDState) error {
	if state != LEDOn && state != LEDOff {
		return plant.Invalid("state", `must be "on" or "off"`)
	}

	if err := s.merge(ctx, Patch{LEDState: &state}); err != nil {
		return err
	}

	s.logger.Info().Str("led_state", string(state)).Msg("led state updated")
	s.publish(ctx, events.TypeLEDStateChanged, map[string]string{"state": string(state)})
	return nil
}

// LEDStatus returns the desired LED state and the last computed plant status.
func (s *Service) LEDStatus(ctx context.Context) (*LEDStatus, error) {
	record, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &LEDStatus{
		State:       record.EffectiveLEDState(),
		PlantStatus: record.Status.CalculatedStatus,
	}, nil
}

// SubmitSensors evaluates a reading against the stored config and persists
// both the reading and the resulting status.
func (s *Service) SubmitSensors(ctx context.Context, reading plant.SensorReading) (plant.Status, error) {
	if err := reading.Validate(); err != nil {
		return "", err
	}

	record, err := s.Get(ctx)
	if err != nil {
		return "", err
	}

	status := s.evaluate(ctx, reading, record.Config)
	now := s.now().UTC()

	err = s.merge(ctx, Patch{
		Sensors: &reading,
		Status:  &StatusInfo{CalculatedStatus: status, LastUpdate: &now},
	})
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Float64("luminosity", reading.Luminosity).
		Float64("soil_moisture", reading.SoilMoisture).
		Float64("uv_level", reading.UVLevel).
		Str("plant_status", string(status)).
		Msg("sensor reading recorded")

	s.publish(ctx, events.TypeSensorReadingRecorded, map[string]interface{}{
		"sensors":     reading,
		"plantStatus": status,
	})
	if status != record.Status.CalculatedStatus {
		s.publishStatusChange(ctx, record.Status.CalculatedStatus, status)
	}

	return status, nil
}

// SetLocation stores the plant location. The difficulty is untouched.
func (s *Service) SetLocation(ctx context.Context, loc plant.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if err := s.merge(ctx, Patch{Location: &loc}); err != nil {
		return err
	}
	s.logger.Info().Float64("lat", loc.Lat).Float64("lon", loc.Lon).Msg("location updated")
	return nil
}

// SetDifficulty stores the difficulty level. The location is untouched.
func (s *Service) SetDifficulty(ctx context.Context, level plant.DifficultyLevel) error {
	if !level.Valid() {
		return &plant.Error{Kind: plant.UnknownDifficulty, Field: "difficulty", Message: "must be one of EASY, MEDIUM, HARD"}
	}
	if err := s.merge(ctx, Patch{Difficulty: &level}); err != nil {
		return err
	}
	s.logger.Info().Str("difficulty", string(level)).Msg("difficulty updated")
	return nil
}

// RefreshStatus re-evaluates the stored reading against current weather.
// It reports false when no reading has been stored yet.
func (s *Service) RefreshStatus(ctx context.Context) (plant.Status, bool, error) {
	record, err := s.Get(ctx)
	if err != nil {
		return "", false, err
	}
	if record.Sensors == nil {
		return "", false, nil
	}

	status := s.evaluate(ctx, *record.Sensors, record.Config)
	if status == record.Status.CalculatedStatus {
		return status, true, nil
	}

	now := s.now().UTC()
	if err := s.merge(ctx, Patch{Status: &StatusInfo{CalculatedStatus: status, LastUpdate: &now}}); err != nil {
		return "", true, err
	}
	s.publishStatusChange(ctx, record.Status.CalculatedStatus, status)
	return status, true, nil
}

func (s *Service) evaluate(ctx context.Context, reading plant.SensorReading, cfg plant.DeviceConfig) plant.Status {
	ctx, span := telemetry.Tracer(instrumentationName).Start(ctx, "plant.Evaluate")
	defer span.End()

	status := plant.Evaluate(ctx, reading, cfg, false, s.weather)

	span.SetAttributes(
		attribute.String("plant.difficulty", string(cfg.EffectiveDifficulty())),
		attribute.Bool("plant.has_location", cfg.Location != nil),
		attribute.String("plant.status", string(status)),
	)
	if s.evaluations != nil {
		s.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	}
	return status
}

func (s *Service) merge(ctx context.Context, patch Patch) error {
	if err := s.repo.Merge(ctx, s.deviceID, patch); err != nil {
		s.logger.Error().Err(err).Msg("failed to write device record")
		return plant.Unavailable("writing device", err)
	}
	return nil
}

func (s *Service) publishStatusChange(ctx context.Context, from, to plant.Status) {
	s.logger.Info().Str("from", string(from)).Str("to", string(to)).Msg("plant status changed")
	s.publish(ctx, events.TypePlantStatusChanged, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

func (s *Service) publish(ctx context.Context, eventType string, data interface{}) {
	evt, err := events.New(eventType, s.deviceID, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
