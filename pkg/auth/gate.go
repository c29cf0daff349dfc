package auth

import "fmt"

// Check decides whether the authorization context satisfies the minimum
// role for its workspace. Pure function, no I/O.
//
// Denials are typed: USER_NOT_AUTHORIZED when the context resolved no role
// for the workspace, INSUFFICIENT_PERMISSIONS when the resolved role ranks
// below the minimum. A nil return means the request is allowed.
func Check(authCtx *Context, minimum Role) error {
	if authCtx == nil {
		return ErrUserNotAuthorized
	}

	role, ok := authCtx.RoleForWorkspace()
	if !ok {
		return ErrUserNotAuthorized
	}

	if role.Rank() < minimum.Rank() {
		return NewError(CodeInsufficientPermissions,
			fmt.Sprintf("requires %s role or higher", minimum))
	}

	return nil
}
