package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/atriumhq/atrium/pkg/auth"
)

// Status represents the lifecycle status of a workspace
type Status string

const (
	StatusActive      Status = "Active"
	StatusSoftDeleted Status = "SoftDeleted"
)

// Workspace represents a tenant. Each workspace owns an isolated storage
// namespace created atomically with the workspace itself; the namespace
// name never changes after creation and deletion is logical only.
type Workspace struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	NamespaceName string    `json:"namespace_name"`
	Status        Status    `json:"status"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Member represents a user's membership in a workspace
type Member struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	SubjectID   string    `json:"subject_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        auth.Role `json:"role"`
	AddedAt     time.Time `json:"added_at"`
}

// ErrNotFound is returned when a workspace or member does not exist
var ErrNotFound = errors.New("not found")

// ErrLastOwner is returned when an operation would leave a workspace with
// no OWNER. The OWNER count must never drop to zero.
var ErrLastOwner = errors.New("workspace must retain at least one owner")

// Store is the persistent workspace/member store gateway
type Store interface {
	// GetWorkspace returns an active workspace by ID or ErrNotFound
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)

	// ListWorkspacesForSubject returns all active workspaces the subject
	// is a member of, newest first.
	ListWorkspacesForSubject(ctx context.Context, subjectID string) ([]*Workspace, error)

	// GetNamespace returns the stored namespace name for a workspace or
	// ErrNotFound when no mapping row exists.
	GetNamespace(ctx context.Context, workspaceID string) (string, error)

	// SoftDeleteWorkspace flags the workspace as deleted. The namespace
	// is not dropped.
	SoftDeleteWorkspace(ctx context.Context, workspaceID string) error

	// GetMember returns a membership row by member ID or ErrNotFound
	GetMember(ctx context.Context, workspaceID, memberID string) (*Member, error)

	// GetMemberBySubject returns the subject's membership in a workspace
	// or ErrNotFound.
	GetMemberBySubject(ctx context.Context, workspaceID, subjectID string) (*Member, error)

	// ListMembers returns all members of a workspace, oldest first
	ListMembers(ctx context.Context, workspaceID string) ([]*Member, error)

	// AddMember inserts a membership row
	AddMember(ctx context.Context, member *Member) error

	// UpdateMemberRole changes a member's role
	UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) error

	// RemoveMember deletes a membership row
	RemoveMember(ctx context.Context, workspaceID, memberID string) error

	// CountOwners returns the number of OWNER members in a workspace
	CountOwners(ctx context.Context, workspaceID string) (int, error)
}
