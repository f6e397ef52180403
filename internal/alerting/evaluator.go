package alerting

import (
	"context"
	"fmt"

	"basement-monitor/internal/models"
)

// Verdict classifies a window of readings for one reading type.
type Verdict int

const (
	AllIn Verdict = iota
	AllOut
	Mixed
)

func (v Verdict) String() string {
	switch v {
	case AllOut:
		return "ALL_OUT"
	case Mixed:
		return "MIXED"
	default:
		return "ALL_IN"
	}
}

// Verdicts holds one verdict per reading type.
type Verdicts map[models.ReadingType]Verdict

// Classify evaluates a newest-first window. A window shorter than the
// configured size means the device has too little history, and every reading
// type is reported as ALL_IN so that sparse devices never alert.
func Classify(window []models.Reading, cfg Config) Verdicts {
	out := make(Verdicts, len(models.ReadingTypes))
	for _, rt := range models.ReadingTypes {
		out[rt] = AllIn
	}
	if len(window) < cfg.WindowSize {
		return out
	}
	window = window[:cfg.WindowSize]

	for _, rt := range models.ReadingTypes {
		band := cfg.Range(rt)
		outside := 0
		for _, r := range window {
			if !band.Contains(r.Value(rt)) {
				outside++
			}
		}
		switch outside {
		case 0:
			out[rt] = AllIn
		case len(window):
			out[rt] = AllOut
		default:
			out[rt] = Mixed
		}
	}
	return out
}

// WindowSource is the read side of the reading store the evaluator needs.
type WindowSource interface {
	RecentReadings(ctx context.Context, deviceID string, limit int) ([]models.Reading, error)
}

// Evaluator fetches a device's window and classifies it.
type Evaluator struct {
	readings WindowSource
	cfg      Config
}

func NewEvaluator(readings WindowSource, cfg Config) *Evaluator {
	return &Evaluator{readings: readings, cfg: cfg}
}

// Evaluate returns the verdicts for the device's most recent window.
func (e *Evaluator) Evaluate(ctx context.Context, deviceID string) (Verdicts, error) {
	window, err := e.readings.RecentReadings(ctx, deviceID, e.cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load window for %s: %w", deviceID, err)
	}
	return Classify(window, e.cfg), nil
}
