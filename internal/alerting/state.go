package alerting

import (
	"context"
	"errors"
	"fmt"

	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

// State is the alert state of one device and reading type. It is never
// stored; it is derived from whether an active alert record exists.
type State int

const (
	NoAlert State = iota
	Alerting
)

func (s State) String() string {
	if s == Alerting {
		return "ALERTING"
	}
	return "NO_ALERT"
}

// DeriveState is the only mapping from ledger contents to State.
func DeriveState(activeExists bool) State {
	if activeExists {
		return Alerting
	}
	return NoAlert
}

// Action is what a transition did to the ledger.
type Action string

const (
	ActionNone     Action = "none"
	ActionOpen     Action = "open"
	ActionRenotify Action = "renotify"
	ActionClose    Action = "close"
)

// LedgerConsistencyError means an active alert the state machine expected to
// find was missing, typically because a concurrent request closed it.
type LedgerConsistencyError struct {
	DeviceID    string
	ReadingType models.ReadingType
	Op          string
	Err         error
}

func (e *LedgerConsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistent during %s for %s/%s: %v", e.Op, e.DeviceID, e.ReadingType, e.Err)
}

func (e *LedgerConsistencyError) Unwrap() error {
	return e.Err
}

func consistencyErr(op, deviceID string, rt models.ReadingType, err error) error {
	if errors.Is(err, store.ErrAlertNotFound) {
		return &LedgerConsistencyError{DeviceID: deviceID, ReadingType: rt, Op: op, Err: err}
	}
	return fmt.Errorf("%s %s/%s: %w", op, deviceID, rt, err)
}

func currentState(ctx context.Context, ledger store.Ledger, deviceID string, rt models.ReadingType) (State, error) {
	exists, err := ledger.ExistsActive(ctx, deviceID, rt)
	if err != nil {
		return NoAlert, fmt.Errorf("failed to look up active alert %s/%s: %w", deviceID, rt, err)
	}
	return DeriveState(exists), nil
}
