package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SystemSetting represents a system-wide configuration setting, keyed by a
// dotted setting_key (e.g. "scheduling.min_gap_minutes").
type SystemSetting struct {
	ID             int32
	SettingKey     string
	SettingValue   string
	SettingType    string
	Description    sql.NullString
	Category       string
	LastModifiedBy sql.NullString
	LastModifiedAt time.Time
	CreatedAt      time.Time
}

// UpdateSystemSettingParams contains parameters for updating a system setting.
type UpdateSystemSettingParams struct {
	SettingKey     string
	SettingValue   string
	LastModifiedBy string
}

// StageLogEntry is one structured, append-only record of a pipeline step's
// outcome, keyed by taskId.
type StageLogEntry struct {
	ID         int64
	TaskID     string
	Stage      string
	Step       sql.NullString
	Level      string
	Message    string
	Data       json.RawMessage
	DurationMs sql.NullInt64
	At         time.Time
}

// CreateStageLogParams contains parameters for appending a stage log entry.
type CreateStageLogParams struct {
	TaskID     string
	Stage      string
	Step       sql.NullString
	Level      string
	Message    string
	Data       json.RawMessage
	DurationMs sql.NullInt64
}
