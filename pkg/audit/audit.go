// Package audit records workspace-level audit events. Recording is
// best-effort by contract: a failed append is logged and never aborts the
// operation that produced it.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/observability"
)

// Event is a single audit log entry
type Event struct {
	WorkspaceID string `json:"workspace_id"`
	Action      string `json:"action"`
	ActorID     string `json:"actor_id"`
	Details     string `json:"details,omitempty"`
}

// Actions recorded by the platform core
const (
	ActionWorkspaceCreate   = "workspace.create"
	ActionWorkspaceDelete   = "workspace.delete"
	ActionMemberAdd         = "member.add"
	ActionMemberRoleChange  = "member.role_change"
	ActionMemberRemove      = "member.remove"
)

// Sink appends audit events
type Sink interface {
	Record(ctx context.Context, event Event)
}

// DBSink appends audit events to the master audit_log table
type DBSink struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDBSink creates a database-backed audit sink
func NewDBSink(db *sql.DB, logger *observability.Logger) *DBSink {
	return &DBSink{db: db, logger: logger}
}

// Record appends the event. Failures are logged and swallowed.
func (s *DBSink) Record(ctx context.Context, event Event) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, workspace_id, action, actor_id, details, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), event.WorkspaceID, event.Action, event.ActorID, event.Details, time.Now().UTC())
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"workspace_id": event.WorkspaceID,
			"action":       event.Action,
		}).Warn("failed to record audit event")
	}
}

// NopSink discards all events
type NopSink struct{}

// Record does nothing
func (NopSink) Record(ctx context.Context, event Event) {}
