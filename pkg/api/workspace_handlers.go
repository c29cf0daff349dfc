package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/workspace"
)

type createWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleCreateWorkspace provisions a new workspace with the caller as
// OWNER. No prior workspace role is required: any authenticated subject
// may create their first workspace.
func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "workspace name is required")
		return
	}

	ws, err := s.workspaces.Create(r.Context(), req.Name, req.Description, auth.IdentityClaims{
		SubjectID:   authCtx.SubjectID,
		Email:       authCtx.Email,
		DisplayName: authCtx.Email,
	})
	if err != nil {
		s.logger.WithError(err).WithField("subject_id", authCtx.SubjectID).
			Error("workspace provisioning failed")
		httputil.WriteErrorCode(w, http.StatusInternalServerError,
			string(auth.CodeWorkspaceProvisionFailed), "failed to provision workspace")
		return
	}

	httputil.WriteCreated(w, ws)
}

// handleListWorkspaces returns the caller's active workspaces
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	list, err := s.workspaces.ListForSubject(r.Context(), authCtx.SubjectID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list workspaces")
		httputil.WriteInternalError(w)
		return
	}
	if list == nil {
		list = []*workspace.Workspace{}
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["workspace_id"]

	ws, err := s.workspaces.Get(r.Context(), workspaceID)
	if err != nil {
		s.writeWorkspaceError(w, err, "failed to load workspace")
		return
	}
	httputil.WriteSuccess(w, ws)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	workspaceID := mux.Vars(r)["workspace_id"]

	if err := s.workspaces.SoftDelete(r.Context(), workspaceID, authCtx.SubjectID); err != nil {
		s.writeWorkspaceError(w, err, "failed to delete workspace")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["workspace_id"]

	members, err := s.workspaces.ListMembers(r.Context(), workspaceID)
	if err != nil {
		s.writeWorkspaceError(w, err, "failed to list members")
		return
	}
	if members == nil {
		members = []*workspace.Member{}
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	workspaceID := mux.Vars(r)["workspace_id"]

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.SubjectID == "" {
		httputil.WriteBadRequest(w, "subject_id is required")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "role must be one of VIEWER, MEMBER, ADMIN, OWNER")
		return
	}

	member, err := s.workspaces.AddMember(r.Context(), workspaceID, req.SubjectID, req.DisplayName, role, authCtx.SubjectID)
	if err != nil {
		s.writeWorkspaceError(w, err, "failed to add member")
		return
	}
	httputil.WriteCreated(w, member)
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	vars := mux.Vars(r)

	var req updateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "role must be one of VIEWER, MEMBER, ADMIN, OWNER")
		return
	}

	member, err := s.workspaces.UpdateMemberRole(r.Context(), vars["workspace_id"], vars["member_id"], role, authCtx.SubjectID)
	if err != nil {
		s.writeWorkspaceError(w, err, "failed to update member role")
		return
	}
	httputil.WriteSuccess(w, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	vars := mux.Vars(r)

	if err := s.workspaces.RemoveMember(r.Context(), vars["workspace_id"], vars["member_id"], authCtx.SubjectID); err != nil {
		s.writeWorkspaceError(w, err, "failed to remove member")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["workspace_id"]

	list, err := s.integrations.List(r.Context(), workspaceID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list integrations")
		httputil.WriteInternalError(w)
		return
	}
	if list == nil {
		list = []*workspace.Integration{}
	}
	httputil.WriteSuccess(w, list)
}

type addIntegrationRequest struct {
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

func (s *Server) handleAddIntegration(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	workspaceID := mux.Vars(r)["workspace_id"]

	var req addIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Provider == "" {
		httputil.WriteBadRequest(w, "provider is required")
		return
	}

	in, err := s.integrations.Add(r.Context(), workspaceID, req.Provider, req.DisplayName, req.URL, authCtx.SubjectID)
	if err != nil {
		s.logger.WithError(err).Error("failed to add integration")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, in)
}

// writeWorkspaceError maps store-level errors onto the wire
func (s *Server) writeWorkspaceError(w http.ResponseWriter, err error, logMessage string) {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		httputil.WriteNotFound(w, "workspace or member not found")
	case errors.Is(err, workspace.ErrLastOwner):
		httputil.WriteErrorCode(w, http.StatusConflict, "LAST_OWNER", workspace.ErrLastOwner.Error())
	default:
		s.logger.WithError(err).Error(logMessage)
		httputil.WriteInternalError(w)
	}
}
