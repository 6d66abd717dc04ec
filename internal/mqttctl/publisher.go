// Package mqttctl pushes per-device control state to an MQTT broker so the
// microcontroller can read its relay flag without polling the HTTP API.
package mqttctl

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/store"
)

// Publisher publishes control records under <prefix>/<deviceId>/control.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	logger      *zap.Logger
}

// NewPublisher connects to the broker.
func NewPublisher(brokerURL, clientID, topicPrefix string, logger *zap.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	logger.Info("connected to MQTT broker", zap.String("broker", brokerURL))
	return &Publisher{client: client, topicPrefix: topicPrefix, logger: logger}, nil
}

// PublishControlState publishes the control record as a retained message so
// a device that reconnects immediately sees its current relay flag.
func (p *Publisher) PublishControlState(state store.ControlState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal control state: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/control", p.topicPrefix, state.DeviceID)
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish control state: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
