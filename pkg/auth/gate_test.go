package auth

import "testing"

func ctxWithRole(role Role) *Context {
	return &Context{
		SubjectID:     "subject-1",
		WorkspaceID:   "ws-a",
		Roles:         RoleMap{"ws-a": role},
		WorkspaceRole: &role,
	}
}

func TestCheckAllowsAtOrAboveMinimum(t *testing.T) {
	roles := []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}

	for _, held := range roles {
		for _, minimum := range roles {
			err := Check(ctxWithRole(held), minimum)
			if held.Rank() >= minimum.Rank() {
				if err != nil {
					t.Errorf("Check(%s, min %s) = %v, want allow", held, minimum, err)
				}
				continue
			}
			authErr := AsError(err)
			if authErr == nil || authErr.Code != CodeInsufficientPermissions {
				t.Errorf("Check(%s, min %s) = %v, want INSUFFICIENT_PERMISSIONS", held, minimum, err)
			}
		}
	}
}

func TestCheckDeniesWithoutRole(t *testing.T) {
	noRole := &Context{
		SubjectID:   "subject-1",
		WorkspaceID: "ws-a",
		Roles:       RoleMap{},
	}

	err := Check(noRole, RoleViewer)
	authErr := AsError(err)
	if authErr == nil || authErr.Code != CodeUserNotAuthorized {
		t.Errorf("Check with no role = %v, want USER_NOT_AUTHORIZED", err)
	}
}

func TestCheckDeniesNilContext(t *testing.T) {
	err := Check(nil, RoleViewer)
	authErr := AsError(err)
	if authErr == nil || authErr.Code != CodeUserNotAuthorized {
		t.Errorf("Check(nil) = %v, want USER_NOT_AUTHORIZED", err)
	}
}

func TestCheckMonotonic(t *testing.T) {
	// Once a role satisfies a minimum, every higher role does too.
	roles := []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
	for _, minimum := range roles {
		allowed := false
		for _, held := range roles {
			err := Check(ctxWithRole(held), minimum)
			if err == nil {
				allowed = true
			} else if allowed {
				t.Errorf("role %s denied for minimum %s after a lower role was allowed", held, minimum)
			}
		}
	}
}
