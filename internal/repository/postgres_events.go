package repository

import (
	"context"
	"database/sql"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

type PostgresEventsRepo struct {
	db *sql.DB
}

func NewPostgresEventsRepo(db *sql.DB) *PostgresEventsRepo {
	return &PostgresEventsRepo{db: db}
}

func (r *PostgresEventsRepo) Append(ctx context.Context, e *domain.DeviceEvent) error {
	q := `
		INSERT INTO device_events (device_id, event_type, title, description, severity, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var deviceID any
	if e.DeviceID.Valid {
		deviceID = e.DeviceID.String
	}
	severity := e.Severity
	if severity == "" {
		severity = "INFO"
	}
	_, err := r.db.ExecContext(ctx, q, deviceID, e.EventType, e.Title, e.Description, severity, e.Metadata)
	return err
}

func (r *PostgresEventsRepo) ListForDevice(ctx context.Context, deviceID string, limit int) ([]*domain.DeviceEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
		SELECT event_id::text,
		       CASE WHEN device_id IS NULL THEN NULL ELSE device_id::text END,
		       event_type, title, description, severity, metadata, created_at
		FROM device_events
		WHERE device_id::text = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.DeviceEvent{}
	for rows.Next() {
		var e domain.DeviceEvent
		if err := rows.Scan(&e.EventID, &e.DeviceID, &e.EventType, &e.Title, &e.Description, &e.Severity, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// PostgresSettingsRepo system_settings 键值存储
type PostgresSettingsRepo struct {
	db *sql.DB
}

func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

func (r *PostgresSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *PostgresSettingsRepo) Upsert(ctx context.Context, key, value, category string, isPublic bool) error {
	q := `
		INSERT INTO system_settings (key, value, category, is_public)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			is_public = EXCLUDED.is_public,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, key, value, category, isPublic)
	return err
}

func (r *PostgresSettingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM system_settings WHERE key = $1`, key)
	return err
}
