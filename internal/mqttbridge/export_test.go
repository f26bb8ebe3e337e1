package mqttbridge

import mqtt "github.com/eclipse/paho.mqtt.golang"

// SetClient swaps the broker client.
func (b *Bridge) SetClient(client mqtt.Client) { b.client = client }

// OnConnect runs the connect handler against client.
func (b *Bridge) OnConnect(client mqtt.Client) { b.onConnect(client) }

// OnSensorMessage runs the sensor message handler.
func (b *Bridge) OnSensorMessage(client mqtt.Client, msg mqtt.Message) { b.onSensorMessage(client, msg) }

// OrderMatters reports whether the client serialises message handlers.
func (b *Bridge) OrderMatters() bool {
	opts := b.client.OptionsReader()
	return opts.Order()
}
