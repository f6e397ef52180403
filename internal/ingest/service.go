// Package ingest stores a reading and runs the alert state machine for it.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/metrics"
	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

// Transitioner applies a verdict for one reading type.
type Transitioner interface {
	Transition(ctx context.Context, deviceID string, rt models.ReadingType, verdict alerting.Verdict, value int) (alerting.Outcome, error)
}

// Evaluator classifies a device's window.
type Evaluator interface {
	Evaluate(ctx context.Context, deviceID string) (alerting.Verdicts, error)
}

// Result reports what happened after the reading was stored. Errors holds
// per reading type failures; they never affect the stored reading or the
// other reading type.
type Result struct {
	Reading  models.Reading
	Outcomes map[models.ReadingType]alerting.Outcome
	Errors   map[models.ReadingType]error
}

// Err joins every per reading type failure, or nil.
func (r Result) Err() error {
	var errs []error
	for _, rt := range models.ReadingTypes {
		if err := r.Errors[rt]; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Service struct {
	readings  store.ReadingStore
	evaluator Evaluator
	machine   Transitioner
	logger    *logging.Logger
}

func NewService(readings store.ReadingStore, evaluator Evaluator, machine Transitioner, logger *logging.Logger) *Service {
	return &Service{readings: readings, evaluator: evaluator, machine: machine, logger: logger}
}

// Ingest validates and stores the reading, then evaluates both reading types.
// An error is returned only when the reading was not stored.
func (s *Service) Ingest(ctx context.Context, source string, r models.Reading) (Result, error) {
	res := Result{
		Reading:  r,
		Outcomes: make(map[models.ReadingType]alerting.Outcome, len(models.ReadingTypes)),
		Errors:   make(map[models.ReadingType]error),
	}

	if err := r.Validate(); err != nil {
		metrics.ReadingsTotal.WithLabelValues(source, "rejected").Inc()
		return res, err
	}
	if err := s.readings.InsertReading(ctx, r); err != nil {
		metrics.ReadingsTotal.WithLabelValues(source, "failed").Inc()
		return res, fmt.Errorf("failed to store reading: %w", err)
	}
	metrics.ReadingsTotal.WithLabelValues(source, "stored").Inc()
	s.logger.Debugf("Stored reading dev_id=%s ts=%s temp=%d humidity=%d", r.DeviceID, r.Timestamp, r.Temperature, r.Humidity)

	verdicts, err := s.evaluator.Evaluate(ctx, r.DeviceID)
	if err != nil {
		s.logger.Errorf("Window evaluation failed for %s: %v", r.DeviceID, err)
		for _, rt := range models.ReadingTypes {
			res.Errors[rt] = err
			metrics.AlertErrorsTotal.WithLabelValues(string(rt), "ledger").Inc()
		}
		return res, nil
	}

	for _, rt := range models.ReadingTypes {
		out, err := s.machine.Transition(ctx, r.DeviceID, rt, verdicts[rt], r.Value(rt))
		res.Outcomes[rt] = out
		if err != nil {
			res.Errors[rt] = err
			s.recordFailure(r.DeviceID, rt, err)
			continue
		}
		metrics.AlertTransitionsTotal.WithLabelValues(string(rt), string(out.Action)).Inc()
		if out.NotifyErr != nil {
			metrics.AlertErrorsTotal.WithLabelValues(string(rt), "notification").Inc()
		}
	}
	return res, nil
}

func (s *Service) recordFailure(deviceID string, rt models.ReadingType, err error) {
	var lce *alerting.LedgerConsistencyError
	if errors.As(err, &lce) {
		s.logger.WithField("op", lce.Op).Errorf("Ledger consistency fault for %s/%s: %v", deviceID, rt, err)
		metrics.AlertErrorsTotal.WithLabelValues(string(rt), "consistency").Inc()
		return
	}
	s.logger.Errorf("Alert processing failed for %s/%s: %v", deviceID, rt, err)
	metrics.AlertErrorsTotal.WithLabelValues(string(rt), "ledger").Inc()
}
