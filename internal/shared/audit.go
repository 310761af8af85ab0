package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID int64
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool, log *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, log: log}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == 0 {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`, entry.ActorID, entry.Action, entry.Entity, strconv.FormatInt(entry.EntityID, 10), metaJSON, entry.At)
	return err
}

// RecordAsync persists the entry best-effort; failures are logged, never
// returned, so audit writes cannot fail a committed business operation.
func (l *AuditLogger) RecordAsync(ctx context.Context, entry AuditLog) {
	if l == nil {
		return
	}
	if err := l.Record(ctx, entry); err != nil && l.log != nil {
		l.log.Warn("audit record failed", "action", entry.Action, "entity", entry.Entity, "err", err)
	}
}
