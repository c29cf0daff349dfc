package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a master-schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the master-schema migrations in order. Workspace
// namespaces are not created here; the provisioner owns their DDL.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					namespace_name TEXT NOT NULL UNIQUE,
					status TEXT NOT NULL DEFAULT 'Active',
					created_by TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_workspaces_status ON workspaces(status);
				CREATE INDEX IF NOT EXISTS idx_workspaces_created_by ON workspaces(created_by);
			`,
		},
		{
			Version:     2,
			Description: "Create workspace_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_members (
					id UUID PRIMARY KEY,
					workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					subject_id TEXT NOT NULL,
					display_name TEXT,
					role TEXT NOT NULL,
					added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(workspace_id, subject_id)
				);

				CREATE INDEX IF NOT EXISTS idx_workspace_members_workspace_id ON workspace_members(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_workspace_members_subject_id ON workspace_members(subject_id);
			`,
		},
		{
			Version:     3,
			Description: "Create audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id UUID PRIMARY KEY,
					workspace_id UUID NOT NULL,
					action TEXT NOT NULL,
					actor_id TEXT NOT NULL,
					details TEXT,
					recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_log_workspace_id ON audit_log(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_audit_log_recorded_at ON audit_log(recorded_at);
			`,
		},
	}
}

// RunMigrations applies all pending master-schema migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
