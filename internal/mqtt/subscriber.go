// Package mqtt carries readings over an MQTT broker, in both directions.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	ingestTimeout  = 30 * time.Second
)

// Ingester is satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, r models.Reading) (ingest.Result, error)
}

// Subscriber ingests readings that devices publish to a topic.
type Subscriber struct {
	client paho.Client
	topic  string
	svc    Ingester
	logger *logging.Logger
}

func NewSubscriber(broker, clientID, topic string, svc Ingester, logger *logging.Logger) *Subscriber {
	s := &Subscriber{topic: topic, svc: svc, logger: logger}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		// resubscribe after every reconnect
		SetOnConnectHandler(func(c paho.Client) {
			if token := c.Subscribe(s.topic, qos, s.onMessage); token.Wait() && token.Error() != nil {
				s.logger.Errorf("MQTT subscribe to %s failed: %v", s.topic, token.Error())
				return
			}
			s.logger.Infof("MQTT subscribed to %s", s.topic)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warnf("MQTT connection lost: %v", err)
		})
	s.client = paho.NewClient(opts)
	return s
}

func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}
	return nil
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	s.handle(msg.Topic(), msg.Payload())
}

func (s *Subscriber) handle(topic string, payload []byte) {
	var p models.ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Errorf("Unmarshal MQTT message on %s failed: %v", topic, err)
		return
	}
	r, err := p.Reading()
	if err != nil {
		s.logger.Errorf("Invalid MQTT message on %s: %v", topic, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	res, err := s.svc.Ingest(ctx, "mqtt", r)
	if err != nil {
		s.logger.Errorf("Ingest failed for %s: %v", r.DeviceID, err)
		return
	}
	if err := res.Err(); err != nil {
		s.logger.Warnf("Reading from %s stored with alert errors: %v", r.DeviceID, err)
	}
}

func (s *Subscriber) Close() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
}
