package workspace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/observability"
)

// Service orchestrates workspace and membership lifecycle over the store
// and the namespace provisioner.
type Service struct {
	store       Store
	provisioner *Provisioner
	audit       audit.Sink
	logger      *observability.Logger
}

// NewService creates a workspace service
func NewService(store Store, provisioner *Provisioner, sink audit.Sink, logger *observability.Logger) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		store:       store,
		provisioner: provisioner,
		audit:       sink,
		logger:      logger,
	}
}

// Create provisions a new workspace with the creator as OWNER. The
// workspace ID is generated here, so concurrent creations never contend on
// the same namespace. Provisioning failures surface as hard errors; a
// workspace is never half-created.
func (s *Service) Create(ctx context.Context, name, description string, creator auth.IdentityClaims) (*Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}

	id := NewID()
	ws := &Workspace{
		ID:            id,
		Name:          name,
		Description:   description,
		NamespaceName: NamespaceFor(id),
		CreatedBy:     creator.SubjectID,
	}
	owner := &Member{
		ID:          uuid.NewString(),
		WorkspaceID: id,
		SubjectID:   creator.SubjectID,
		DisplayName: creator.DisplayName,
		Role:        auth.RoleOwner,
	}

	if err := s.provisioner.Provision(ctx, ws, owner); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		WorkspaceID: ws.ID,
		Action:      audit.ActionWorkspaceCreate,
		ActorID:     creator.SubjectID,
		Details:     ws.Name,
	})

	return ws, nil
}

// Get returns an active workspace by ID
func (s *Service) Get(ctx context.Context, workspaceID string) (*Workspace, error) {
	return s.store.GetWorkspace(ctx, workspaceID)
}

// ListForSubject returns the workspaces the subject belongs to
func (s *Service) ListForSubject(ctx context.Context, subjectID string) ([]*Workspace, error) {
	return s.store.ListWorkspacesForSubject(ctx, subjectID)
}

// SoftDelete flags a workspace as deleted. The namespace stays in place.
func (s *Service) SoftDelete(ctx context.Context, workspaceID, actorID string) error {
	if err := s.store.SoftDeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		WorkspaceID: workspaceID,
		Action:      audit.ActionWorkspaceDelete,
		ActorID:     actorID,
	})
	return nil
}

// ListMembers returns all members of a workspace
func (s *Service) ListMembers(ctx context.Context, workspaceID string) ([]*Member, error) {
	return s.store.ListMembers(ctx, workspaceID)
}

// AddMember adds a subject to a workspace with the given role. Adding a
// subject that is already a member is rejected.
func (s *Service) AddMember(ctx context.Context, workspaceID, subjectID, displayName string, role auth.Role, actorID string) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if _, err := s.store.GetMemberBySubject(ctx, workspaceID, subjectID); err == nil {
		return nil, fmt.Errorf("subject %s is already a member of workspace %s", subjectID, workspaceID)
	}

	member := &Member{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		SubjectID:   subjectID,
		DisplayName: displayName,
		Role:        role,
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		WorkspaceID: workspaceID,
		Action:      audit.ActionMemberAdd,
		ActorID:     actorID,
		Details:     fmt.Sprintf("%s as %s", subjectID, role),
	})

	return member, nil
}

// UpdateMemberRole changes a member's role. Demoting the last OWNER is
// rejected with ErrLastOwner.
func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role, actorID string) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	member, err := s.store.GetMember(ctx, workspaceID, memberID)
	if err != nil {
		return nil, err
	}

	if member.Role == auth.RoleOwner && role != auth.RoleOwner {
		if err := s.ensureNotLastOwner(ctx, workspaceID); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateMemberRole(ctx, workspaceID, memberID, role); err != nil {
		return nil, err
	}
	member.Role = role

	s.audit.Record(ctx, audit.Event{
		WorkspaceID: workspaceID,
		Action:      audit.ActionMemberRoleChange,
		ActorID:     actorID,
		Details:     fmt.Sprintf("%s to %s", member.SubjectID, role),
	})

	return member, nil
}

// RemoveMember deletes a membership. Removing the last OWNER is rejected
// with ErrLastOwner.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, memberID, actorID string) error {
	member, err := s.store.GetMember(ctx, workspaceID, memberID)
	if err != nil {
		return err
	}

	if member.Role == auth.RoleOwner {
		if err := s.ensureNotLastOwner(ctx, workspaceID); err != nil {
			return err
		}
	}

	if err := s.store.RemoveMember(ctx, workspaceID, memberID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		WorkspaceID: workspaceID,
		Action:      audit.ActionMemberRemove,
		ActorID:     actorID,
		Details:     member.SubjectID,
	})

	return nil
}

// ensureNotLastOwner rejects operations that would drop the OWNER count to
// zero. A workspace observed with zero owners already is a consistency
// violation and is logged for operator attention.
func (s *Service) ensureNotLastOwner(ctx context.Context, workspaceID string) error {
	owners, err := s.store.CountOwners(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to count workspace owners: %w", err)
	}
	if owners == 0 {
		s.logger.WithField("workspace_id", workspaceID).
			Error("workspace has zero owners, consistency violation")
		return ErrLastOwner
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
