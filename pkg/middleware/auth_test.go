package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/contextkeys"
)

func TestWorkspaceIDFromPath(t *testing.T) {
	id := "123e4567-e89b-12d3-a456-426614174000"

	tests := []struct {
		path string
		want string
	}{
		{"/workspaces/" + id, id},
		{"/workspaces/" + id + "/members", id},
		{"/workspaces/" + id + "/members/m1", id},
		{"/workspaces", ""},
		{"/workspaces/", ""},
		{"/workspaces/not-a-uuid", ""},
		{"/workspaces/not-a-uuid/members", ""},
		{"/auth/exchange", ""},
		{"/", ""},
		{"/other/" + id, ""},
	}

	for _, tt := range tests {
		if got := WorkspaceIDFromPath(tt.path); got != tt.want {
			t.Errorf("WorkspaceIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"abc123", ""},
		{"", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func requestWithAuthContext(authCtx *auth.Context) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/workspaces/ws-a", nil)
	if authCtx != nil {
		r = r.WithContext(contextkeys.WithAuth(r.Context(), authCtx))
	}
	return r
}

func TestRequireRoleAllows(t *testing.T) {
	role := auth.RoleAdmin
	authCtx := &auth.Context{
		SubjectID:     "subject-1",
		WorkspaceID:   "ws-a",
		WorkspaceRole: &role,
	}

	called := false
	handler := RequireRole(auth.RoleMember, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithAuthContext(authCtx))

	if !called {
		t.Error("expected handler to run")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequireRoleDeniesInsufficientRole(t *testing.T) {
	role := auth.RoleViewer
	authCtx := &auth.Context{
		SubjectID:     "subject-1",
		WorkspaceID:   "ws-a",
		WorkspaceRole: &role,
	}

	handler := RequireRole(auth.RoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithAuthContext(authCtx))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.ErrorCode != string(auth.CodeInsufficientPermissions) {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestRequireRoleDeniesWithoutRole(t *testing.T) {
	authCtx := &auth.Context{
		SubjectID:   "subject-1",
		WorkspaceID: "ws-a",
	}

	handler := RequireRole(auth.RoleViewer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithAuthContext(authCtx))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.ErrorCode != string(auth.CodeUserNotAuthorized) {
		t.Errorf("error_code = %q", body.ErrorCode)
	}
}

func TestRequireRoleWithoutBoundContext(t *testing.T) {
	handler := RequireRole(auth.RoleViewer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithAuthContext(nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWriteAuthErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{auth.ErrMissingIdentityToken, http.StatusUnauthorized},
		{auth.ErrMissingSessionToken, http.StatusUnauthorized},
		{auth.ErrInvalidIdentityToken, http.StatusUnauthorized},
		{auth.ErrInvalidSessionToken, http.StatusUnauthorized},
		{auth.ErrTokenMismatch, http.StatusUnauthorized},
		{auth.ErrUserNotAuthorized, http.StatusForbidden},
		{auth.NewError(auth.CodeInsufficientPermissions, "requires ADMIN role or higher"), http.StatusForbidden},
		{auth.NewError(auth.CodeWorkspaceProvisionFailed, "provisioning failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteAuthError(rec, tt.err)
		if rec.Code != tt.status {
			t.Errorf("WriteAuthError(%v) status = %d, want %d", tt.err, rec.Code, tt.status)
		}
	}
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("expected a generated request id in the context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("expected the request id to be echoed in the response header")
	}

	// A caller-supplied id is preserved.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if seen != "given-id" {
		t.Errorf("request id = %q, want given-id", seen)
	}
}
