package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"basement-monitor/internal/models"
)

// Publisher sends device readings to a broker. Used by the sensor client.
type Publisher struct {
	client paho.Client
	topic  string
}

func NewPublisher(broker, clientID, topic string) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", err)
	}
	return &Publisher{client: c, topic: topic}, nil
}

// Send publishes one reading and waits for the broker acknowledgement.
func (p *Publisher) Send(ctx context.Context, payload models.ReadingPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling sensor data: %w", err)
	}
	token := p.client.Publish(p.topic, qos, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish sensor data: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
