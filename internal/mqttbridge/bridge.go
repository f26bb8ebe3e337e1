// Package mqttbridge connects the device to the relay over MQTT. Sensor
// readings arrive on {prefix}/{deviceID}/sensors and the retained LED
// document is published to {prefix}/{deviceID}/led.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/config"
	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/plant"
)

// ErrInvalidPayload is returned for sensor messages that cannot be used.
var ErrInvalidPayload = errors.New("invalid sensor payload")

// Config holds the broker connection settings.
type Config struct {
	BrokerURL   string
	TopicPrefix string
	ClientID    string
	QoS         byte

	// ConnectTimeout bounds the initial connection (default: 10 seconds).
	ConnectTimeout time.Duration

	// HandleTimeout bounds processing of one sensor message (default: 10 seconds).
	HandleTimeout time.Duration
}

// ConfigFromEnv reads the MQTT configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		BrokerURL:      config.String("MQTT_BROKER_URL", ""),
		TopicPrefix:    config.String("MQTT_TOPIC_PREFIX", "spouty"),
		ClientID:       config.String("MQTT_CLIENT_ID", "spouty-relay"),
		QoS:            byte(config.Int("MQTT_QOS", 1)),
		ConnectTimeout: config.Duration("MQTT_CONNECT_TIMEOUT", 10*time.Second),
		HandleTimeout:  10 * time.Second,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.BrokerURL != ""
}

// Devices is the part of device.Service the bridge needs.
type Devices interface {
	DeviceID() string
	SubmitSensors(ctx context.Context, reading plant.SensorReading) (plant.Status, error)
	LEDStatus(ctx context.Context) (*device.LEDStatus, error)
}

// Bridge relays MQTT sensor messages into the device service.
type Bridge struct {
	cfg     Config
	client  mqtt.Client
	devices Devices
	logger  zerolog.Logger

	sensorsTopic string
	ledTopic     string
}

// New builds a bridge. Nothing connects until Start.
func New(cfg Config, devices Devices, logger zerolog.Logger) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "spouty"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HandleTimeout == 0 {
		cfg.HandleTimeout = 10 * time.Second
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}

	b := &Bridge{
		cfg:          cfg,
		devices:      devices,
		logger:       logger.With().Str("component", "mqttbridge").Logger(),
		sensorsTopic: Topic(cfg.TopicPrefix, devices.DeviceID(), "sensors"),
		ledTopic:     Topic(cfg.TopicPrefix, devices.DeviceID(), "led"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn().Err(err).Msg("mqtt connection lost")
		})
	b.client = mqtt.NewClient(opts)

	return b
}

// Topic joins a topic prefix, device ID and leaf.
func Topic(prefix, deviceID, leaf string) string {
	return strings.Trim(prefix, "/") + "/" + deviceID + "/" + leaf
}

// SensorsTopic returns the topic the bridge subscribes to.
func (b *Bridge) SensorsTopic() string { return b.sensorsTopic }

// LEDTopic returns the topic the LED document is published to.
func (b *Bridge) LEDTopic() string { return b.ledTopic }

// Start connects to the broker. Subscriptions are (re)established on every
// connect.
func (b *Bridge) Start(ctx context.Context) error {
	b.logger.Info().
		Str("broker", b.cfg.BrokerURL).
		Str("sensors_topic", b.sensorsTopic).
		Msg("connecting to mqtt broker")

	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(b.cfg.ConnectTimeout):
		return fmt.Errorf("connecting to mqtt broker %s: timed out after %s", b.cfg.BrokerURL, b.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	return nil
}

// Close disconnects, allowing in-flight work a short grace period.
func (b *Bridge) Close() {
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	b.logger.Info().Msg("mqtt bridge stopped")
}

func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Info().Msg("mqtt connected")

	if err := b.subscribe(client); err != nil {
		b.logger.Error().Err(err).Str("topic", b.sensorsTopic).Msg("mqtt subscribe failed")
		return
	}

	// The device may have missed changes made over HTTP while offline.
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandleTimeout)
	defer cancel()
	if err := b.PublishLED(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish led state on connect")
	}
}

func (b *Bridge) subscribe(client mqtt.Client) error {
	token := client.Subscribe(b.sensorsTopic, b.cfg.QoS, b.onSensorMessage)
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribing to %s: timed out after %s", b.sensorsTopic, b.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.sensorsTopic, err)
	}
	return nil
}

// onSensorMessage runs on its own goroutine since message ordering is off,
// so it may block on the LED publish.
func (b *Bridge) onSensorMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandleTimeout)
	defer cancel()

	status, err := b.HandleSensorPayload(ctx, msg.Payload())
	if err != nil {
		b.logger.Warn().Err(err).
			Str("topic", msg.Topic()).
			Msg("dropping sensor message")
		return
	}

	b.logger.Debug().Str("plant_status", string(status)).Msg("sensor message processed")

	if err := b.PublishLED(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish led state")
	}
}

// HandleSensorPayload decodes a sensor message and submits it. The payload
// has the same shape as the /api/sensordata body.
func (b *Bridge) HandleSensorPayload(ctx context.Context, payload []byte) (plant.Status, error) {
	var req models.SensorDataRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if missing := req.Missing(); len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	status, err := b.devices.SubmitSensors(ctx, req.Reading())
	if err != nil {
		var perr *plant.Error
		if errors.As(err, &perr) && perr.IsInputError() {
			return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return "", err
	}
	return status, nil
}

// LEDDocument renders the retained LED document.
func (b *Bridge) LEDDocument(ctx context.Context) ([]byte, error) {
	status, err := b.devices.LEDStatus(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.LEDStatusResponse{
		State:       string(status.State),
		PlantStatus: status.PlantStatus,
	})
}

// PublishLED publishes the current LED document as a retained message.
func (b *Bridge) PublishLED(ctx context.Context) error {
	doc, err := b.LEDDocument(ctx)
	if err != nil {
		return fmt.Errorf("reading led state: %w", err)
	}

	token := b.client.Publish(b.ledTopic, b.cfg.QoS, true, doc)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing %s: %w", b.ledTopic, err)
	}
	return nil
}
