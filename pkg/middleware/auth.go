// Package middleware provides the HTTP request plumbing that binds the
// per-request authorization context and enforces minimum workspace roles
// before a handler runs.
package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/workspace"
)

// SessionTokenHeader carries the session token on every request. The
// identity token travels in the standard Authorization bearer header.
const SessionTokenHeader = "X-Session-Token"

// WorkspaceIDFromPath extracts the workspace ID from a request path: the
// segment immediately following the workspaces collection marker. Segments
// that do not match the canonical UUID shape are treated as absent, so no
// workspace-scoped role is ever resolved for them.
func WorkspaceIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if segment != "workspaces" || i+1 >= len(segments) {
			continue
		}
		candidate := segments[i+1]
		if workspace.ValidateID(candidate) == nil {
			return candidate
		}
		return ""
	}
	return ""
}

// Authorization returns middleware that validates both tokens, binds the
// authorization context, and threads it through the request context.
// Requests missing or carrying invalid tokens are rejected here; "no role
// in this workspace" is not; that is RequireRole's decision.
func Authorization(binder *auth.Binder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identityToken := bearerToken(r)
			sessionToken := r.Header.Get(SessionTokenHeader)
			workspaceID := WorkspaceIDFromPath(r.URL.Path)

			authCtx, err := binder.Bind(r.Context(), identityToken, sessionToken, workspaceID)
			if err != nil {
				WriteAuthError(w, err)
				return
			}

			ctx := contextkeys.WithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware enforcing a minimum workspace role on the
// wrapped handler. Decisions are recorded on the metrics registry when one
// is provided.
func RequireRole(minimum auth.Role, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteErrorCode(w, http.StatusUnauthorized,
					string(auth.CodeMissingSessionToken), "authorization context not bound")
				return
			}

			if err := auth.Check(authCtx, minimum); err != nil {
				if metrics != nil {
					metrics.AuthzDecisionsTotal.WithLabelValues(denyOutcome(err)).Inc()
				}
				WriteAuthError(w, err)
				return
			}

			if metrics != nil {
				metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID returns middleware assigning each request a UUID, exposed to
// handlers through the context and to clients via the X-Request-ID header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the bound authorization context from the request
func GetAuthContext(r *http.Request) *auth.Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// WriteAuthError maps a typed auth error onto the wire: token problems are
// 401, authorization denials 403, everything else 500 without detail.
func WriteAuthError(w http.ResponseWriter, err error) {
	authErr := auth.AsError(err)
	if authErr == nil {
		httputil.WriteInternalError(w)
		return
	}

	status := http.StatusUnauthorized
	switch authErr.Code {
	case auth.CodeUserNotAuthorized, auth.CodeInsufficientPermissions:
		status = http.StatusForbidden
	case auth.CodeWorkspaceProvisionFailed:
		status = http.StatusInternalServerError
	}
	httputil.WriteErrorCode(w, status, string(authErr.Code), authErr.Message)
}

func denyOutcome(err error) string {
	if authErr := auth.AsError(err); authErr != nil && authErr.Code == auth.CodeInsufficientPermissions {
		return "insufficient_permissions"
	}
	return "not_authorized"
}
