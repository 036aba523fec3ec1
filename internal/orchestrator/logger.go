package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-mfg/tobacco-aps/internal/db"
)

// StageLogStore persists the append-only stage-log stream. Satisfied by
// *db.Queries.
type StageLogStore interface {
	AppendStageLog(ctx context.Context, params db.CreateStageLogParams) error
}

// StageLogger emits structured per-stage events to both the process log
// (via zap, for operators tailing the running service) and the database
// (for the GetTask logs endpoint). The teacher's plain log.Printf calls
// cannot carry the structured data map this needs, so zap is used here
// instead of the teacher's own logging.
type StageLogger struct {
	zap   *zap.Logger
	store StageLogStore
}

// NewStageLogger builds a StageLogger. Pass zap.NewProduction() (or
// zap.NewDevelopment() for local runs) as the logger.
func NewStageLogger(logger *zap.Logger, store StageLogStore) *StageLogger {
	return &StageLogger{zap: logger, store: store}
}

// Log records one stage-log entry at level ("info", "warn", "error").
// Persistence failures are logged but never block the pipeline — the
// in-process zap log is the record of last resort.
func (l *StageLogger) Log(ctx context.Context, taskID, stage, step, level, message string, data map[string]interface{}, duration time.Duration) {
	fields := []zap.Field{
		zap.String("taskId", taskID),
		zap.String("stage", stage),
		zap.Duration("duration", duration),
	}
	if step != "" {
		fields = append(fields, zap.String("step", step))
	}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}

	switch level {
	case "error":
		l.zap.Error(message, fields...)
	case "warn":
		l.zap.Warn(message, fields...)
	default:
		l.zap.Info(message, fields...)
	}

	params := db.CreateStageLogParams{
		TaskID:     taskID,
		Stage:      stage,
		Level:      level,
		Message:    message,
		DurationMs: sql.NullInt64{Int64: duration.Milliseconds(), Valid: duration > 0},
	}
	if step != "" {
		params.Step = sql.NullString{String: step, Valid: true}
	}
	if len(data) > 0 {
		if encoded, err := json.Marshal(data); err == nil {
			params.Data = encoded
		}
	}
	if err := l.store.AppendStageLog(ctx, params); err != nil {
		l.zap.Warn("failed to persist stage log", zap.String("taskId", taskID), zap.Error(err))
	}
}
