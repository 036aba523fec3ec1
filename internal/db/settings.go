package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSystemSettings retrieves all system settings, ordered for stable
// display (category then key). The scheduling tunables the service runs
// with come from config.Load's environment variables, not from this table.
func (q *Queries) GetSystemSettings(ctx context.Context) ([]SystemSetting, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, setting_key, setting_value, setting_type, description, category,
		       last_modified_by, last_modified_at, created_at
		FROM system_settings
		ORDER BY category, setting_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get system settings: %w", err)
	}
	defer rows.Close()

	var settings []SystemSetting
	for rows.Next() {
		var s SystemSetting
		if err := rows.Scan(
			&s.ID, &s.SettingKey, &s.SettingValue, &s.SettingType, &s.Description, &s.Category,
			&s.LastModifiedBy, &s.LastModifiedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan system setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetSystemSetting retrieves a single setting value by key, or ("", false)
// if unset.
func (q *Queries) GetSystemSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT setting_value FROM system_settings WHERE setting_key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// UpdateSystemSetting updates a single system setting.
func (q *Queries) UpdateSystemSetting(ctx context.Context, params UpdateSystemSettingParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE system_settings
		SET setting_value = $1, last_modified_by = $2, last_modified_at = NOW()
		WHERE setting_key = $3
	`, params.SettingValue, params.LastModifiedBy, params.SettingKey)
	return err
}
