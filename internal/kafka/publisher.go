package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"basement-monitor/internal/config"
	"basement-monitor/internal/notification"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a notification channel that emits alert events to a topic,
// keyed by device so one device's events stay ordered.
type Publisher struct {
	writer messageWriter
}

var _ notification.Channel = (*Publisher)(nil)

func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("kafka broker is required")
	}
	if cfg.AlertsTopic == "" {
		return nil, errors.New("topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Broker, ",")...),
		Topic:        cfg.AlertsTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: w}, nil
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) Send(ctx context.Context, evt notification.Event, msg notification.Message) error {
	value, err := json.Marshal(alertMessage{Event: evt, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		return fmt.Errorf("failed to serialize alert event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.DeviceID),
		Value: value,
		Time:  evt.At,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

type alertMessage struct {
	notification.Event
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
