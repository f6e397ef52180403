package db

import (
	"context"
	"fmt"

	"basement-monitor/internal/models"
)

func (d *DB) InsertReading(ctx context.Context, r models.Reading) error {
	query := `INSERT INTO readings (dev_id, ts, temp, humidity) VALUES ($1, $2, $3, $4)`
	if _, err := d.Pool.Exec(ctx, query, r.DeviceID, r.Timestamp, r.Temperature, r.Humidity); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// RecentReadings orders by timestamp, then by insertion order for ties.
func (d *DB) RecentReadings(ctx context.Context, deviceID string, limit int) ([]models.Reading, error) {
	query := `
	SELECT dev_id, ts, temp, humidity
	FROM readings
	WHERE dev_id = $1
	ORDER BY ts DESC, id DESC`
	args := []interface{}{deviceID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.DeviceID, &r.Timestamp, &r.Temperature, &r.Humidity); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return out, nil
}

func (d *DB) CountReadings(ctx context.Context, f models.Filter) (int64, error) {
	return d.count(ctx, "readings", f, false)
}

func (d *DB) DeleteReadings(ctx context.Context, f models.Filter) (int64, error) {
	return d.delete(ctx, "readings", f, false)
}

func (d *DB) count(ctx context.Context, table string, f models.Filter, withType bool) (int64, error) {
	clause, args := where(f, withType)
	var n int64
	if err := d.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func (d *DB) delete(ctx context.Context, table string, f models.Filter, withType bool) (int64, error) {
	clause, args := where(f, withType)
	tag, err := d.Pool.Exec(ctx, "DELETE FROM "+table+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
