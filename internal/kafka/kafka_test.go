package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"basement-monitor/internal/config"
	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
	"basement-monitor/internal/notification"
)

type recordingIngester struct {
	mu   sync.Mutex
	got  []models.Reading
	done chan struct{}
}

func (r *recordingIngester) Ingest(_ context.Context, source string, rd models.Reading) (ingest.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source != "kafka" {
		return ingest.Result{}, errors.New("wrong source " + source)
	}
	r.got = append(r.got, rd)
	if r.done != nil && len(r.got) == 1 {
		close(r.done)
	}
	return ingest.Result{Reading: rd}, nil
}

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	mu        sync.Mutex
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumerIngestsAndSkipsPoison(t *testing.T) {
	good, _ := json.Marshal(models.NewPayload("RazPi_01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 70, 40))
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: []byte(`{"dev_id":"x","ts":"bad","temp":1,"humidity":1}`)},
		{Offset: 3, Value: good},
	}}
	ing := &recordingIngester{done: make(chan struct{})}
	c := &Consumer{reader: reader, svc: ing, logger: logging.Discard()}

	var wg sync.WaitGroup
	c.Start(context.Background(), &wg)
	select {
	case <-ing.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reading never ingested")
	}
	c.Close()
	wg.Wait()

	if len(ing.got) != 1 || ing.got[0].DeviceID != "RazPi_01" {
		t.Errorf("ingested %+v", ing.got)
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if len(reader.committed) != 3 {
		t.Errorf("committed offsets %v, want all three", reader.committed)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublisherKeysByDevice(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}
	evt := notification.Event{ID: "e1", Kind: notification.KindCleared, DeviceID: "RazPi_01", ReadingType: models.Humidity}

	if err := p.Send(context.Background(), evt, notification.Message{Subject: "CLEARED"}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "RazPi_01" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got["kind"] != "cleared" || got["alert_type"] != "humidity" || got["subject"] != "CLEARED" {
		t.Errorf("payload = %v", got)
	}
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	if _, err := NewPublisher(configWithBroker("")); err == nil {
		t.Error("empty broker accepted")
	}
}

func configWithBroker(b string) config.KafkaConfig {
	return config.KafkaConfig{Broker: b, AlertsTopic: "alerts", ReadingsTopic: "readings"}
}
