package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spouty/spouty/internal/events"
)

type recordingPublisher struct {
	events []events.Event
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestNew(t *testing.T) {
	evt, err := events.New(events.TypeLEDStateChanged, "spouty", map[string]string{"state": "on"})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, events.TypeLEDStateChanged, evt.Type)
	assert.Equal(t, "spouty", evt.DeviceID)
	assert.False(t, evt.OccurredAt.IsZero())
	assert.JSONEq(t, `{"state":"on"}`, string(evt.Data))

	other, err := events.New(events.TypeLEDStateChanged, "spouty", nil)
	require.NoError(t, err)
	assert.NotEqual(t, evt.ID, other.ID)
	assert.Nil(t, other.Data)
}

func TestMulti_PublishesToAll(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	multi := events.Multi{failing, ok}

	evt, _ := events.New(events.TypePlantStatusChanged, "spouty", nil)
	err := multi.Publish(context.Background(), evt)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)

	require.NoError(t, multi.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := events.NewLogPublisher(zerolog.New(&buf))

	evt, _ := events.New(events.TypeSensorReadingRecorded, "spouty", map[string]float64{"luminosity": 3})
	require.NoError(t, pub.Publish(context.Background(), evt))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "device event", line["message"])
	assert.Equal(t, events.TypeSensorReadingRecorded, line["event_type"])
	assert.Equal(t, "spouty", line["device_id"])
	assert.Equal(t, map[string]interface{}{"luminosity": 3.0}, line["data"])
}

func TestNewPublisher_Selection(t *testing.T) {
	pub, err := events.NewPublisher(context.Background(), events.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, events.Nop{}, pub)

	pub, err = events.NewPublisher(context.Background(), events.Config{Sinks: []string{"log"}}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &events.LogPublisher{}, pub)

	pub, err = events.NewPublisher(context.Background(), events.Config{
		Sinks:        []string{"log", "kafka"},
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "spouty.device-events",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, events.Multi{}, pub)
	_ = pub.Close()
}

func TestNewPublisher_Errors(t *testing.T) {
	_, err := events.NewPublisher(context.Background(), events.Config{Sinks: []string{"carrier-pigeon"}}, zerolog.Nop())
	assert.Error(t, err)

	_, err = events.NewPublisher(context.Background(), events.Config{Sinks: []string{"kafka"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EVENT_SINKS", "log, kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := events.ConfigFromEnv()
	assert.Equal(t, []string{"log", "kafka"}, cfg.Sinks)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
