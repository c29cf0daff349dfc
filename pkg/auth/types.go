package auth

import (
	"fmt"
	"time"
)

// Role represents a workspace-level role
type Role string

const (
	RoleViewer Role = "VIEWER" // Read-only access to the workspace
	RoleMember Role = "MEMBER" // Can work inside the workspace
	RoleAdmin  Role = "ADMIN"  // Can manage members and settings
	RoleOwner  Role = "OWNER"  // Full control, at least one per workspace
)

// roleRanks is the total order of the role hierarchy
var roleRanks = map[Role]int{
	RoleViewer: 0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Rank returns the hierarchy rank of the role. Unknown roles rank below
// VIEWER so they can never satisfy a minimum-role check.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// Valid reports whether the role is one of the four known roles
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// ParseRole converts a role string into a Role, rejecting unknown values
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// RoleMap maps workspace IDs to the subject's role in each workspace
type RoleMap map[string]Role

// RoleFor returns the role for a workspace and whether one exists.
// A role never materializes for a workspace that is absent as a key.
func (m RoleMap) RoleFor(workspaceID string) (Role, bool) {
	role, ok := m[workspaceID]
	return role, ok
}

// Clone returns an independent copy of the role map
func (m RoleMap) Clone() RoleMap {
	out := make(RoleMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ParseRoleMap converts a raw string map into a RoleMap, rejecting entries
// with unknown role values at the boundary.
func ParseRoleMap(raw map[string]string) (RoleMap, error) {
	out := make(RoleMap, len(raw))
	for workspaceID, s := range raw {
		role, err := ParseRole(s)
		if err != nil {
			return nil, fmt.Errorf("workspace %s: %w", workspaceID, err)
		}
		out[workspaceID] = role
	}
	return out, nil
}

// IdentityClaims holds the subject identity extracted from a verified
// identity token. Never persisted; lives for one request or exchange call.
type IdentityClaims struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SessionClaims is the verified payload of a session token
type SessionClaims struct {
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email"`
	Roles     RoleMap   `json:"roles"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Context is the immutable per-request authorization context produced by
// the Binder. It carries the subject identity, the (possibly reconciled)
// role map, and the resolved role for the workspace targeted by the
// request. A nil WorkspaceRole means the subject has no role there.
type Context struct {
	SubjectID     string
	Email         string
	Roles         RoleMap
	WorkspaceID   string
	WorkspaceRole *Role
}

// RoleForWorkspace returns the resolved role for the request's workspace
// and whether one was resolved.
func (c *Context) RoleForWorkspace() (Role, bool) {
	if c.WorkspaceRole == nil {
		return "", false
	}
	return *c.WorkspaceRole, true
}

// ExchangeResult is the outcome of a successful token exchange or refresh
type ExchangeResult struct {
	SubjectID    string  `json:"subject_id"`
	Email        string  `json:"email"`
	DisplayName  string  `json:"display_name"`
	SessionToken string  `json:"session_token"`
	Roles        RoleMap `json:"roles"`
}
