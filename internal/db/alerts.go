package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

func (d *DB) ExistsActive(ctx context.Context, deviceID string, rt models.ReadingType) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM active_alerts WHERE dev_id = $1 AND alert_type = $2)`
	if err := d.Pool.QueryRow(ctx, query, deviceID, string(rt)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active alert: %w", err)
	}
	return exists, nil
}

// InsertActive relies on the (dev_id, alert_type) primary key; a conflicting
// row leaves zero rows affected.
func (d *DB) InsertActive(ctx context.Context, a models.ActiveAlert) error {
	query := `
	INSERT INTO active_alerts (dev_id, alert_type, originated_at, last_notified_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (dev_id, alert_type) DO NOTHING`
	tag, err := d.Pool.Exec(ctx, query, a.DeviceID, string(a.ReadingType), a.OriginatedAt, a.LastNotifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert active alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateAlert
	}
	return nil
}

func (d *DB) GetActive(ctx context.Context, deviceID string, rt models.ReadingType) (models.ActiveAlert, error) {
	query := `
	SELECT dev_id, alert_type, originated_at, last_notified_at
	FROM active_alerts
	WHERE dev_id = $1 AND alert_type = $2`
	var a models.ActiveAlert
	var alertType string
	err := d.Pool.QueryRow(ctx, query, deviceID, string(rt)).Scan(&a.DeviceID, &alertType, &a.OriginatedAt, &a.LastNotifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ActiveAlert{}, store.ErrAlertNotFound
	}
	if err != nil {
		return models.ActiveAlert{}, fmt.Errorf("failed to get active alert: %w", err)
	}
	a.ReadingType = models.ReadingType(alertType)
	a.OriginatedAt = a.OriginatedAt.UTC()
	a.LastNotifiedAt = a.LastNotifiedAt.UTC()
	return a, nil
}

func (d *DB) UpdateLastNotified(ctx context.Context, deviceID string, rt models.ReadingType, ts time.Time) error {
	query := `UPDATE active_alerts SET last_notified_at = $3 WHERE dev_id = $1 AND alert_type = $2`
	tag, err := d.Pool.Exec(ctx, query, deviceID, string(rt), ts)
	if err != nil {
		return fmt.Errorf("failed to update last notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAlertNotFound
	}
	return nil
}

// CloseActive deletes the active row and writes its history record in one
// transaction.
func (d *DB) CloseActive(ctx context.Context, deviceID string, rt models.ReadingType, clearedAt time.Time) (models.AlertHistoryRecord, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.AlertHistoryRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var originated time.Time
	err = tx.QueryRow(ctx,
		`DELETE FROM active_alerts WHERE dev_id = $1 AND alert_type = $2 RETURNING originated_at`,
		deviceID, string(rt)).Scan(&originated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AlertHistoryRecord{}, store.ErrAlertNotFound
	}
	if err != nil {
		return models.AlertHistoryRecord{}, fmt.Errorf("failed to delete active alert: %w", err)
	}

	rec := models.AlertHistoryRecord{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		ReadingType:  rt,
		OriginatedAt: originated.UTC(),
		ClearedAt:    clearedAt,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO alert_history (id, dev_id, alert_type, originated_at, cleared_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.DeviceID, string(rec.ReadingType), rec.OriginatedAt, rec.ClearedAt)
	if err != nil {
		return models.AlertHistoryRecord{}, fmt.Errorf("failed to insert alert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.AlertHistoryRecord{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, nil
}

func (d *DB) CountActive(ctx context.Context, f models.Filter) (int64, error) {
	return d.count(ctx, "active_alerts", f, true)
}

func (d *DB) DeleteActive(ctx context.Context, f models.Filter) (int64, error) {
	return d.delete(ctx, "active_alerts", f, true)
}

func (d *DB) CountHistory(ctx context.Context, f models.Filter) (int64, error) {
	return d.count(ctx, "alert_history", f, true)
}

func (d *DB) DeleteHistory(ctx context.Context, f models.Filter) (int64, error) {
	return d.delete(ctx, "alert_history", f, true)
}
