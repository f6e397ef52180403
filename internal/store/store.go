// Package store defines the persistence contract shared by the Postgres,
// Mongo and in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"basement-monitor/internal/models"
)

var (
	// ErrDuplicateAlert is returned by InsertActive when an active alert
	// already exists for the device and reading type.
	ErrDuplicateAlert = errors.New("active alert already exists")
	// ErrAlertNotFound is returned when no active alert exists for the key.
	ErrAlertNotFound = errors.New("active alert not found")
)

// ReadingStore is the append-only collection of submitted readings.
type ReadingStore interface {
	InsertReading(ctx context.Context, r models.Reading) error
	// RecentReadings returns up to limit readings for the device, newest first.
	RecentReadings(ctx context.Context, deviceID string, limit int) ([]models.Reading, error)
	CountReadings(ctx context.Context, f models.Filter) (int64, error)
	DeleteReadings(ctx context.Context, f models.Filter) (int64, error)
}

// Ledger holds active alerts and their closed history.
type Ledger interface {
	ExistsActive(ctx context.Context, deviceID string, rt models.ReadingType) (bool, error)
	// InsertActive inserts only if no alert exists for the key; otherwise it
	// returns ErrDuplicateAlert. Implementations must make the check and the
	// insert a single atomic step.
	InsertActive(ctx context.Context, a models.ActiveAlert) error
	GetActive(ctx context.Context, deviceID string, rt models.ReadingType) (models.ActiveAlert, error)
	UpdateLastNotified(ctx context.Context, deviceID string, rt models.ReadingType, ts time.Time) error
	// CloseActive moves the active alert into history in one atomic step and
	// returns the history record written.
	CloseActive(ctx context.Context, deviceID string, rt models.ReadingType, clearedAt time.Time) (models.AlertHistoryRecord, error)

	CountActive(ctx context.Context, f models.Filter) (int64, error)
	DeleteActive(ctx context.Context, f models.Filter) (int64, error)
	CountHistory(ctx context.Context, f models.Filter) (int64, error)
	DeleteHistory(ctx context.Context, f models.Filter) (int64, error)
}

// Store is a full backend.
type Store interface {
	ReadingStore
	Ledger
	Ping(ctx context.Context) error
	Close() error
}
