package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"basement-monitor/internal/config"
	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

// Ingester is satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, r models.Reading) (ingest.Result, error)
}

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds readings published on a topic into the ingest flow.
type Consumer struct {
	reader messageReader
	svc    Ingester
	logger *logging.Logger
	cancel context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, svc Ingester, logger *logging.Logger) (*Consumer, error) {
	if cfg.Broker == "" {
		return nil, errors.New("kafka broker is required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(cfg.Broker, ","),
		GroupID:     cfg.GroupID,
		Topic:       cfg.ReadingsTopic,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{reader: r, svc: svc, logger: logger}, nil
}

func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	ctx, c.cancel = context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handle(ctx, msg)
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// handle processes one message. Bad payloads are logged and skipped so a
// poison message cannot stall the partition.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var payload models.ReadingPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		c.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}
	r, err := payload.Reading()
	if err != nil {
		c.logger.Errorf("Invalid message at offset %d: %v", msg.Offset, err)
		return
	}
	res, err := c.svc.Ingest(ctx, "kafka", r)
	if err != nil {
		c.logger.Errorf("Ingest failed for %s: %v", r.DeviceID, err)
		return
	}
	if err := res.Err(); err != nil {
		c.logger.Warnf("Reading from %s stored with alert errors: %v", r.DeviceID, err)
	}
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
