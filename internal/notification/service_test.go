package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

type recordingChannel struct {
	name string
	err  error
	got  []Message
	evts []Event
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, evt Event, msg Message) error {
	c.evts = append(c.evts, evt)
	c.got = append(c.got, msg)
	return c.err
}

var cfg = alerting.Config{
	Temperature: alerting.Range{Min: 50, Max: 80},
	Humidity:    alerting.Range{Min: 20, Max: 60},
	WindowSize:  4,
}

func TestCompose(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	opened := Compose(Event{Kind: KindOpened, DeviceID: "RazPi_01", ReadingType: models.Temperature, Value: 85, Range: cfg.Temperature, At: at})
	if opened.Subject != "ALERT: RazPi_01 temperature out of range (85°F)" {
		t.Errorf("subject = %q", opened.Subject)
	}
	for _, want := range []string{"Latest reading: 85°F", "Safe range: 50°F to 80°F", "2024-05-01T10:00:00Z"} {
		if !strings.Contains(opened.Body, want) {
			t.Errorf("body missing %q:\n%s", want, opened.Body)
		}
	}

	cleared := Compose(Event{Kind: KindCleared, DeviceID: "RazPi_01", ReadingType: models.Humidity, Value: 45, Range: cfg.Humidity, At: at})
	if cleared.Subject != "CLEARED: RazPi_01 humidity back in range" {
		t.Errorf("subject = %q", cleared.Subject)
	}
}

func TestDispatchContinuesPastFailingChannel(t *testing.T) {
	bad := &recordingChannel{name: "email", err: errors.New("smtp down")}
	good := &recordingChannel{name: "websocket"}
	svc := New(cfg, logging.Discard(), bad, good)

	err := svc.NotifyOpened(context.Background(), "dev", models.Humidity, 72)
	var ne *Error
	if !errors.As(err, &ne) || ne.Channel != "email" {
		t.Fatalf("err = %v, want notification.Error for email", err)
	}
	if len(good.got) != 1 {
		t.Fatalf("healthy channel got %d messages, want 1", len(good.got))
	}
	evt := good.evts[0]
	if evt.Kind != KindOpened || evt.Range != cfg.Humidity || evt.ID == "" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestNoChannelsIsNotAnError(t *testing.T) {
	svc := New(cfg, logging.Discard())
	if err := svc.NotifyCleared(context.Background(), "dev", models.Temperature, 70); err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(svc.Channels()) != 0 {
		t.Errorf("channels = %v", svc.Channels())
	}
}
