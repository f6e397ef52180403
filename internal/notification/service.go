// Package notification fans alert events out to the configured channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/metrics"
	"basement-monitor/internal/models"
)

// Channel delivers a rendered notification somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, evt Event, msg Message) error
}

// Error records a failed delivery on one channel.
type Error struct {
	Channel string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Service dispatches notifications synchronously to every channel. A failing
// channel does not stop the others; all failures are joined in the result.
type Service struct {
	cfg      alerting.Config
	logger   *logging.Logger
	channels []Channel
	now      func() time.Time
}

var _ alerting.Notifier = (*Service)(nil)

func New(cfg alerting.Config, logger *logging.Logger, channels ...Channel) *Service {
	if len(channels) == 0 {
		logger.Warnf("No notification channels configured, alerts will only be logged")
	}
	return &Service{cfg: cfg, logger: logger, channels: channels, now: time.Now}
}

// Channels returns the configured channel names.
func (s *Service) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (s *Service) NotifyOpened(ctx context.Context, deviceID string, rt models.ReadingType, value int) error {
	return s.dispatch(ctx, s.event(KindOpened, deviceID, rt, value))
}

func (s *Service) NotifyCleared(ctx context.Context, deviceID string, rt models.ReadingType, value int) error {
	return s.dispatch(ctx, s.event(KindCleared, deviceID, rt, value))
}

func (s *Service) event(kind Kind, deviceID string, rt models.ReadingType, value int) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		DeviceID:    deviceID,
		ReadingType: rt,
		Value:       value,
		Range:       s.cfg.Range(rt),
		At:          s.now().UTC(),
	}
}

func (s *Service) dispatch(ctx context.Context, evt Event) error {
	msg := Compose(evt)
	s.logger.Infof("Notification %s: %s", evt.ID, msg.Subject)

	var errs []error
	for _, ch := range s.channels {
		start := time.Now()
		err := ch.Send(ctx, evt, msg)
		metrics.NotificationDuration.WithLabelValues(ch.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(ch.Name(), "failed").Inc()
			s.logger.Errorf("Dispatch error via %s: %v", ch.Name(), err)
			errs = append(errs, &Error{Channel: ch.Name(), Err: err})
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(ch.Name(), "sent").Inc()
	}
	return errors.Join(errs...)
}
