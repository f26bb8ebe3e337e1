package mqttbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/mqttbridge"
	"github.com/spouty/spouty/internal/plant"
)

type unavailableDevices struct{}

func (unavailableDevices) DeviceID() string { return "spouty-1" }

func (unavailableDevices) SubmitSensors(context.Context, plant.SensorReading) (plant.Status, error) {
	return "", plant.Unavailable("writing device", errors.New("connection refused"))
}

func (unavailableDevices) LEDStatus(context.Context) (*device.LEDStatus, error) {
	return nil, errors.New("connection refused")
}

func newBridge(t *testing.T) (*mqttbridge.Bridge, *device.Service) {
	t.Helper()
	svc := device.NewService(device.ServiceConfig{
		DeviceID:   "spouty-1",
		Repository: device.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	cfg := mqttbridge.Config{
		BrokerURL:   "tcp://localhost:1883",
		TopicPrefix: "spouty",
		ClientID:    "spouty-test",
	}
	return mqttbridge.New(cfg, svc, zerolog.Nop()), svc
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://mosquitto:1883")
	t.Setenv("MQTT_TOPIC_PREFIX", "home/plants")
	t.Setenv("MQTT_CLIENT_ID", "")
	t.Setenv("MQTT_QOS", "0")

	cfg := mqttbridge.ConfigFromEnv()

	assert.True(t, cfg.Enabled())
	assert.Equal(t, "tcp://mosquitto:1883", cfg.BrokerURL)
	assert.Equal(t, "home/plants", cfg.TopicPrefix)
	assert.Equal(t, "spouty-relay", cfg.ClientID)
	assert.Equal(t, byte(0), cfg.QoS)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestConfig_DisabledWithoutBroker(t *testing.T) {
	assert.False(t, mqttbridge.Config{}.Enabled())
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "spouty/dev-1/sensors", mqttbridge.Topic("spouty", "dev-1", "sensors"))
	assert.Equal(t, "home/plants/dev-1/led", mqttbridge.Topic("/home/plants/", "dev-1", "led"))
}

func TestBridge_Topics(t *testing.T) {
	b, _ := newBridge(t)

	assert.Equal(t, "spouty/spouty-1/sensors", b.SensorsTopic())
	assert.Equal(t, "spouty/spouty-1/led", b.LEDTopic())
}

func TestBridge_HandleSensorPayload(t *testing.T) {
	b, svc := newBridge(t)
	ctx := context.Background()

	status, err := b.HandleSensorPayload(ctx, []byte(`{"luminosity":0.5,"soilMoisture":0.5,"uvLevel":0}`))
	require.NoError(t, err)
	assert.Equal(t, plant.StatusSleeping, status)

	record, err := svc.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, record.Sensors)
	assert.Equal(t, 0.5, record.Sensors.SoilMoisture)
	assert.Equal(t, plant.StatusSleeping, record.Status.CalculatedStatus)
}

func TestBridge_HandleSensorPayload_Invalid(t *testing.T) {
	b, svc := newBridge(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `luminosity=3`},
		{"missing field", `{"luminosity":3,"soilMoisture":0.5}`},
		{"wrong type", `{"luminosity":"bright","soilMoisture":0.5,"uvLevel":1}`},
		{"negative luminosity", `{"luminosity":-1,"soilMoisture":0.5,"uvLevel":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.HandleSensorPayload(ctx, []byte(tt.payload))
			assert.ErrorIs(t, err, mqttbridge.ErrInvalidPayload)
		})
	}

	record, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, record.Sensors, "dropped payloads must not be stored")
}

func TestBridge_HandleSensorPayload_StoreFailure(t *testing.T) {
	b := mqttbridge.New(mqttbridge.Config{BrokerURL: "tcp://localhost:1883"}, unavailableDevices{}, zerolog.Nop())

	_, err := b.HandleSensorPayload(context.Background(), []byte(`{"luminosity":3,"soilMoisture":0.5,"uvLevel":1}`))

	require.Error(t, err)
	assert.NotErrorIs(t, err, mqttbridge.ErrInvalidPayload)
}

func TestBridge_LEDDocument(t *testing.T) {
	b, svc := newBridge(t)
	ctx := context.Background()

	doc, err := b.LEDDocument(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"off","plantStatus":""}`, string(doc))

	require.NoError(t, svc.SetLED(ctx, device.LEDOn))
	_, err = b.HandleSensorPayload(ctx, []byte(`{"luminosity":300,"soilMoisture":0.1,"uvLevel":1}`))
	require.NoError(t, err)

	doc, err = b.LEDDocument(ctx)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(doc, &got))
	assert.Equal(t, "on", got["state"])
	assert.Equal(t, "THIRSTY", got["plantStatus"])
}

func TestBridge_LEDDocument_StoreFailure(t *testing.T) {
	b := mqttbridge.New(mqttbridge.Config{BrokerURL: "tcp://localhost:1883"}, unavailableDevices{}, zerolog.Nop())

	_, err := b.LEDDocument(context.Background())
	assert.Error(t, err)
}
