// Package alerting decides, from a window of recent readings, when a device
// enters, stays in, or leaves an out-of-range condition.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

// Notifier delivers alert emails and their equivalents on other channels.
type Notifier interface {
	NotifyOpened(ctx context.Context, deviceID string, rt models.ReadingType, value int) error
	NotifyCleared(ctx context.Context, deviceID string, rt models.ReadingType, value int) error
}

// Outcome describes one transition. NotifyErr is set when the ledger was
// updated but the notification could not be delivered.
type Outcome struct {
	ReadingType models.ReadingType
	Verdict     Verdict
	Prior       State
	Action      Action
	NotifyErr   error
}

// Machine runs the per device, per reading type alert transitions.
type Machine struct {
	ledger   store.Ledger
	notifier Notifier
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(ledger store.Ledger, notifier Notifier, cfg Config, logger *logging.Logger, opts ...Option) *Machine {
	m := &Machine{
		ledger:   ledger,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition applies the verdict for one reading type. value is the reading
// that triggered the evaluation and is only used in notifications.
func (m *Machine) Transition(ctx context.Context, deviceID string, rt models.ReadingType, verdict Verdict, value int) (Outcome, error) {
	out := Outcome{ReadingType: rt, Verdict: verdict, Action: ActionNone}

	state, err := currentState(ctx, m.ledger, deviceID, rt)
	if err != nil {
		return out, err
	}
	out.Prior = state

	switch {
	case state == NoAlert && verdict == AllOut:
		return m.open(ctx, out, deviceID, value)
	case state == Alerting && (verdict == AllOut || verdict == Mixed):
		return m.renotify(ctx, out, deviceID, value)
	case state == Alerting && verdict == AllIn:
		return m.close(ctx, out, deviceID, value)
	default:
		return out, nil
	}
}

func (m *Machine) open(ctx context.Context, out Outcome, deviceID string, value int) (Outcome, error) {
	now := m.timestamp()
	err := m.ledger.InsertActive(ctx, models.ActiveAlert{
		DeviceID:       deviceID,
		ReadingType:    out.ReadingType,
		OriginatedAt:   now,
		LastNotifiedAt: now,
	})
	if errors.Is(err, store.ErrDuplicateAlert) {
		// another request opened it first; carry on as a continuing alert
		m.logger.Warnf("Alert %s/%s opened concurrently, treating as continuation", deviceID, out.ReadingType)
		out.Prior = Alerting
		return m.renotify(ctx, out, deviceID, value)
	}
	if err != nil {
		return out, fmt.Errorf("failed to open alert %s/%s: %w", deviceID, out.ReadingType, err)
	}
	out.Action = ActionOpen
	m.logger.Infof("Opened %s alert for %s (value %d)", out.ReadingType.Label(), deviceID, value)
	out.NotifyErr = m.deliver(m.notifier.NotifyOpened(ctx, deviceID, out.ReadingType, value), deviceID, out)
	return out, nil
}

func (m *Machine) renotify(ctx context.Context, out Outcome, deviceID string, value int) (Outcome, error) {
	active, err := m.ledger.GetActive(ctx, deviceID, out.ReadingType)
	if err != nil {
		return out, consistencyErr("renotify", deviceID, out.ReadingType, err)
	}
	now := m.timestamp()
	if now.Sub(active.LastNotifiedAt) < m.cfg.RenotifyDelay {
		return out, nil
	}
	if err := m.ledger.UpdateLastNotified(ctx, deviceID, out.ReadingType, now); err != nil {
		return out, consistencyErr("renotify", deviceID, out.ReadingType, err)
	}
	out.Action = ActionRenotify
	m.logger.Infof("Re-notifying %s alert for %s (open since %s)", out.ReadingType.Label(), deviceID, active.OriginatedAt.Format(time.RFC3339))
	out.NotifyErr = m.deliver(m.notifier.NotifyOpened(ctx, deviceID, out.ReadingType, value), deviceID, out)
	return out, nil
}

func (m *Machine) close(ctx context.Context, out Outcome, deviceID string, value int) (Outcome, error) {
	rec, err := m.ledger.CloseActive(ctx, deviceID, out.ReadingType, m.timestamp())
	if err != nil {
		return out, consistencyErr("close", deviceID, out.ReadingType, err)
	}
	out.Action = ActionClose
	m.logger.Infof("Cleared %s alert for %s after %s", out.ReadingType.Label(), deviceID, rec.ClearedAt.Sub(rec.OriginatedAt))
	out.NotifyErr = m.deliver(m.notifier.NotifyCleared(ctx, deviceID, out.ReadingType, value), deviceID, out)
	return out, nil
}

func (m *Machine) deliver(err error, deviceID string, out Outcome) error {
	if err != nil {
		m.logger.Errorf("Notification for %s/%s (%s) failed: %v", deviceID, out.ReadingType, out.Action, err)
	}
	return err
}

func (m *Machine) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Second)
}
