package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/observability"
)

// ErrNamespaceCollision indicates the derived namespace already exists.
// Given the pure derivation from a freshly generated UUID this must not
// occur; it is an internal consistency violation, never repaired silently.
var ErrNamespaceCollision = errors.New("namespace name collision")

// pgDuplicateSchema is the postgres error code for CREATE SCHEMA on an
// existing schema.
const pgDuplicateSchema = "42P06"

// Provisioner creates the isolated storage namespace for a new workspace.
// Provisioning is atomic: the schema, all workspace-scoped tables and
// indexes, the master workspace row, and the creator's OWNER membership
// are created in a single transaction, or none of them are.
type Provisioner struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewProvisioner creates a provisioner over the given database handle
func NewProvisioner(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Provisioner {
	return &Provisioner{db: db, logger: logger, metrics: metrics}
}

// namespaceTables returns the DDL for the workspace-scoped tables, in
// creation order. The namespace name is produced by NamespaceFor and
// contains only [a-z0-9_], so direct interpolation is safe.
func namespaceTables(namespace string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s.workspace_integrations (
			workspace_integration_id UUID PRIMARY KEY,
			workspace_id UUID NOT NULL,
			subject_id TEXT,
			display_name TEXT,
			provider TEXT NOT NULL,
			url TEXT,
			extra_config JSONB,
			connection_status TEXT,
			added_by TEXT,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, namespace),
		fmt.Sprintf(`CREATE TABLE %s.workspace_agents (
			workspace_agent_id UUID PRIMARY KEY,
			workspace_id UUID NOT NULL,
			agent_type TEXT NOT NULL,
			is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			config JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by TEXT
		)`, namespace),
		fmt.Sprintf(`CREATE TABLE %s.automation_jobs (
			job_id UUID PRIMARY KEY,
			workspace_id UUID NOT NULL,
			workspace_agent_id UUID,
			name TEXT NOT NULL,
			schedule_cron TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, namespace),
		fmt.Sprintf(`CREATE TABLE %s.automation_job_runs (
			job_run_id UUID PRIMARY KEY,
			job_id UUID NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			status TEXT,
			error_message TEXT
		)`, namespace),
		fmt.Sprintf(`CREATE TABLE %s.file_artifacts (
			file_artifact_id UUID PRIMARY KEY,
			workspace_id UUID NOT NULL,
			workspace_agent_id UUID,
			job_run_id UUID,
			type TEXT,
			blob_url TEXT,
			file_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by TEXT
		)`, namespace),
		// Index names are schema-local, so they carry no namespace part.
		// Embedding it would push them past the 63-byte identifier limit
		// and postgres would silently truncate.
		fmt.Sprintf(`CREATE INDEX idx_integrations_workspace_id ON %s.workspace_integrations(workspace_id)`, namespace),
		fmt.Sprintf(`CREATE INDEX idx_agents_workspace_id ON %s.workspace_agents(workspace_id)`, namespace),
		fmt.Sprintf(`CREATE INDEX idx_jobs_workspace_id ON %s.automation_jobs(workspace_id)`, namespace),
		fmt.Sprintf(`CREATE INDEX idx_job_runs_job_id ON %s.automation_job_runs(job_id)`, namespace),
		fmt.Sprintf(`CREATE INDEX idx_artifacts_workspace_id ON %s.file_artifacts(workspace_id)`, namespace),
	}
}

// Provision creates the namespace for ws and records the workspace and its
// OWNER membership in the master schema, all in one transaction. On any
// failure the transaction is rolled back and no partial namespace remains.
func (p *Provisioner) Provision(ctx context.Context, ws *Workspace, owner *Member) error {
	if owner.Role != auth.RoleOwner {
		return fmt.Errorf("workspace creator must be OWNER, got %s", owner.Role)
	}

	start := time.Now()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin provisioning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", ws.NamespaceName)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgDuplicateSchema {
			p.logger.WithFields(map[string]interface{}{
				"workspace_id": ws.ID,
				"namespace":    ws.NamespaceName,
			}).Error("derived namespace already exists, refusing to provision")
			return ErrNamespaceCollision
		}
		return fmt.Errorf("failed to create namespace %s: %w", ws.NamespaceName, err)
	}

	for _, ddl := range namespaceTables(ws.NamespaceName) {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create namespace tables for %s: %w", ws.NamespaceName, err)
		}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, description, namespace_name, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, ws.ID, ws.Name, ws.Description, ws.NamespaceName, string(StatusActive), ws.CreatedBy, now)
	if err != nil {
		return fmt.Errorf("failed to record workspace: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (id, workspace_id, subject_id, display_name, role, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, owner.ID, ws.ID, owner.SubjectID, owner.DisplayName, string(owner.Role), now)
	if err != nil {
		return fmt.Errorf("failed to record owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provisioning transaction: %w", err)
	}

	ws.Status = StatusActive
	ws.CreatedAt = now
	ws.UpdatedAt = now
	owner.AddedAt = now

	if p.metrics != nil {
		p.metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	}
	p.logger.WithFields(map[string]interface{}{
		"workspace_id": ws.ID,
		"namespace":    ws.NamespaceName,
	}).Info("provisioned workspace namespace")

	return nil
}
