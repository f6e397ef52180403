package sensor

import (
	"context"
	"errors"
	"time"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

// Sink delivers a reading to the monitor.
type Sink interface {
	Send(ctx context.Context, payload models.ReadingPayload) error
}

// Loop reads, stamps and sends one reading per interval until ctx is done or
// a finite source runs dry. Send failures are logged and the loop carries on.
type Loop struct {
	DeviceID string
	Interval time.Duration
	Source   Source
	Sink     Sink
	Logger   *logging.Logger
	Verbose  bool
	Now      func() time.Time
}

// Run returns the number of readings delivered.
func (l *Loop) Run(ctx context.Context) (int, error) {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	sent := 0
	for {
		sample, err := l.Source.Read()
		if errors.Is(err, ErrExhausted) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}

		payload := Payload(l.DeviceID, now(), sample)
		if l.Verbose {
			l.Logger.Infof("Sending reading dev_id=%s ts=%s temp=%d humidity=%d",
				payload.DevID, payload.TS, *payload.Temp, *payload.Humidity)
		}
		if err := l.Sink.Send(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			l.Logger.Errorf("Send failed: %v", err)
		} else {
			sent++
		}

		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
}
