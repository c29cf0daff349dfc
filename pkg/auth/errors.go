package auth

// ErrorCode is a stable machine-readable rejection code surfaced to clients
type ErrorCode string

const (
	CodeMissingIdentityToken      ErrorCode = "MISSING_IDENTITY_TOKEN"
	CodeMissingSessionToken       ErrorCode = "MISSING_SESSION_TOKEN"
	CodeInvalidIdentityToken      ErrorCode = "INVALID_IDENTITY_TOKEN"
	CodeInvalidSessionToken       ErrorCode = "INVALID_SESSION_TOKEN"
	CodeTokenMismatch             ErrorCode = "TOKEN_MISMATCH"
	CodeUserNotAuthorized         ErrorCode = "USER_NOT_AUTHORIZED"
	CodeInsufficientPermissions   ErrorCode = "INSUFFICIENT_PERMISSIONS"
	CodeWorkspaceProvisionFailed  ErrorCode = "WORKSPACE_PROVISION_FAILED"
)

// Error is a rejection carrying a stable code and a human-readable message.
// Internal error detail is never attached; callers log the cause separately.
type Error struct {
	Code    ErrorCode `json:"error_code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError creates an Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Predeclared rejections for the token validation and authorization paths
var (
	ErrMissingIdentityToken = NewError(CodeMissingIdentityToken, "identity token is required")
	ErrMissingSessionToken  = NewError(CodeMissingSessionToken, "session token is required")
	ErrInvalidIdentityToken = NewError(CodeInvalidIdentityToken, "identity token is invalid or expired")
	ErrInvalidSessionToken  = NewError(CodeInvalidSessionToken, "session token is invalid or expired")
	ErrTokenMismatch        = NewError(CodeTokenMismatch, "token user mismatch")
	ErrUserNotAuthorized    = NewError(CodeUserNotAuthorized, "you do not have access to this workspace")
)

// AsError returns err as an *Error if it is one, or nil
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}
