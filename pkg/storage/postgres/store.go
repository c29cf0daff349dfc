// Package postgres implements the role/workspace store gateway over the
// master PostgreSQL schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/workspace"
)

// Store implements auth.RoleStore and workspace.Store over database/sql
type Store struct {
	db *sql.DB
}

// NewStore creates a store over the given database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetRoles returns the subject's full current role map. Subjects with no
// memberships get an empty, non-nil map. Membership rows carrying a role
// value outside the closed enum are rejected rather than passed through.
func (s *Store) GetRoles(ctx context.Context, subjectID string) (auth.RoleMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.workspace_id, m.role
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.subject_id = $1 AND w.status = 'Active'
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles for subject: %w", err)
	}
	defer rows.Close()

	roles := auth.RoleMap{}
	for rows.Next() {
		var workspaceID, roleStr string
		if err := rows.Scan(&workspaceID, &roleStr); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		role, err := auth.ParseRole(roleStr)
		if err != nil {
			return nil, fmt.Errorf("malformed membership for workspace %s: %w", workspaceID, err)
		}
		roles[workspaceID] = role
	}
	return roles, rows.Err()
}

// GetWorkspace returns an active workspace by ID or workspace.ErrNotFound
func (s *Store) GetWorkspace(ctx context.Context, workspaceID string) (*workspace.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), namespace_name, status, created_by, created_at, updated_at
		FROM workspaces
		WHERE id = $1 AND status = 'Active'
	`, workspaceID)
	return scanWorkspace(row)
}

// ListWorkspacesForSubject returns the subject's active workspaces, newest
// first.
func (s *Store) ListWorkspacesForSubject(ctx context.Context, subjectID string) ([]*workspace.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, COALESCE(w.description, ''), w.namespace_name, w.status, w.created_by, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON w.id = m.workspace_id
		WHERE m.subject_id = $1 AND w.status = 'Active'
		ORDER BY w.created_at DESC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*workspace.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// GetNamespace returns the stored namespace name for a workspace. Rows are
// consulted regardless of lifecycle status because the namespace mapping
// never changes after creation.
func (s *Store) GetNamespace(ctx context.Context, workspaceID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT namespace_name FROM workspaces WHERE id = $1`, workspaceID,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", workspace.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read namespace mapping: %w", err)
	}
	return name, nil
}

// SoftDeleteWorkspace flags the workspace as deleted
func (s *Store) SoftDeleteWorkspace(ctx context.Context, workspaceID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET status = 'SoftDeleted', updated_at = NOW()
		WHERE id = $1 AND status = 'Active'
	`, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to soft delete workspace: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

const memberColumns = `id, workspace_id, subject_id, COALESCE(display_name, ''), role, added_at`

// GetMember returns a membership row by member ID or workspace.ErrNotFound
func (s *Store) GetMember(ctx context.Context, workspaceID, memberID string) (*workspace.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM workspace_members WHERE id = $1 AND workspace_id = $2`,
		memberID, workspaceID)
	return scanMember(row)
}

// GetMemberBySubject returns the subject's membership or workspace.ErrNotFound
func (s *Store) GetMemberBySubject(ctx context.Context, workspaceID, subjectID string) (*workspace.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM workspace_members WHERE workspace_id = $1 AND subject_id = $2`,
		workspaceID, subjectID)
	return scanMember(row)
}

// ListMembers returns all members of a workspace, oldest first
func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]*workspace.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM workspace_members WHERE workspace_id = $1 ORDER BY added_at ASC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []*workspace.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

// AddMember inserts a membership row
func (s *Store) AddMember(ctx context.Context, member *workspace.Member) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workspace_members (id, workspace_id, subject_id, display_name, role, added_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING added_at
	`, member.ID, member.WorkspaceID, member.SubjectID, member.DisplayName, string(member.Role)).Scan(&member.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// UpdateMemberRole changes a member's role
func (s *Store) UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workspace_members SET role = $1 WHERE id = $2 AND workspace_id = $3`,
		string(role), memberID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

// RemoveMember deletes a membership row
func (s *Store) RemoveMember(ctx context.Context, workspaceID, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE id = $1 AND workspace_id = $2`,
		memberID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

// CountOwners returns the number of OWNER members in a workspace
func (s *Store) CountOwners(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1 AND role = 'OWNER'`,
		workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// scanWorkspace scans a workspace from a row
func scanWorkspace(scanner interface{ Scan(dest ...interface{}) error }) (*workspace.Workspace, error) {
	var ws workspace.Workspace
	var status string
	err := scanner.Scan(
		&ws.ID,
		&ws.Name,
		&ws.Description,
		&ws.NamespaceName,
		&status,
		&ws.CreatedBy,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, workspace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}
	ws.Status = workspace.Status(status)
	return &ws, nil
}

// scanMember scans a member from a row
func scanMember(scanner interface{ Scan(dest ...interface{}) error }) (*workspace.Member, error) {
	var m workspace.Member
	var roleStr string
	err := scanner.Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.SubjectID,
		&m.DisplayName,
		&roleStr,
		&m.AddedAt,
	)
	if err == sql.ErrNoRows {
		return nil, workspace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, fmt.Errorf("malformed member row %s: %w", m.ID, err)
	}
	m.Role = role
	return &m, nil
}
