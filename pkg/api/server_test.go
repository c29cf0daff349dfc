package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atriumhq/atrium/pkg/auth"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/workspace"
)

const testWorkspaceID = "123e4567-e89b-12d3-a456-426614174000"

// stubVerifier accepts exactly one identity token
type stubVerifier struct {
	token  string
	claims auth.IdentityClaims
}

func (s *stubVerifier) Verify(ctx context.Context, rawToken string) (*auth.IdentityClaims, error) {
	if rawToken != s.token {
		return nil, errors.New("unknown token")
	}
	c := s.claims
	return &c, nil
}

// stubStore serves fixed roles and a single workspace
type stubStore struct {
	roles auth.RoleMap
	ws    *workspace.Workspace
}

func (s *stubStore) GetRoles(ctx context.Context, subjectID string) (auth.RoleMap, error) {
	return s.roles.Clone(), nil
}

func (s *stubStore) GetWorkspace(ctx context.Context, workspaceID string) (*workspace.Workspace, error) {
	if s.ws != nil && s.ws.ID == workspaceID {
		return s.ws, nil
	}
	return nil, workspace.ErrNotFound
}

func (s *stubStore) ListWorkspacesForSubject(ctx context.Context, subjectID string) ([]*workspace.Workspace, error) {
	if s.ws == nil {
		return nil, nil
	}
	return []*workspace.Workspace{s.ws}, nil
}

func (s *stubStore) GetNamespace(ctx context.Context, workspaceID string) (string, error) {
	return "", workspace.ErrNotFound
}

func (s *stubStore) SoftDeleteWorkspace(ctx context.Context, workspaceID string) error {
	return nil
}

func (s *stubStore) GetMember(ctx context.Context, workspaceID, memberID string) (*workspace.Member, error) {
	return nil, workspace.ErrNotFound
}

func (s *stubStore) GetMemberBySubject(ctx context.Context, workspaceID, subjectID string) (*workspace.Member, error) {
	return nil, workspace.ErrNotFound
}

func (s *stubStore) ListMembers(ctx context.Context, workspaceID string) ([]*workspace.Member, error) {
	return nil, nil
}

func (s *stubStore) AddMember(ctx context.Context, member *workspace.Member) error {
	return nil
}

func (s *stubStore) UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) error {
	return nil
}

func (s *stubStore) RemoveMember(ctx context.Context, workspaceID, memberID string) error {
	return nil
}

func (s *stubStore) CountOwners(ctx context.Context, workspaceID string) (int, error) {
	return 1, nil
}

type serverFixture struct {
	server *Server
	codec  *auth.SessionCodec
	store  *stubStore
}

func newServerFixture(t *testing.T, roles auth.RoleMap) *serverFixture {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	verifier := &stubVerifier{
		token:  "good-identity",
		claims: auth.IdentityClaims{SubjectID: "subject-1", Email: "user@example.com", DisplayName: "User One"},
	}
	store := &stubStore{
		roles: roles,
		ws: &workspace.Workspace{
			ID:            testWorkspaceID,
			Name:          "Acme",
			NamespaceName: workspace.NamespaceFor(testWorkspaceID),
			Status:        workspace.StatusActive,
		},
	}

	codec := auth.NewSessionCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	exchange := auth.NewExchangeService(verifier, codec, store, logger)
	binder := auth.NewBinder(verifier, codec, store, logger)
	workspaces := workspace.NewService(store, nil, nil, logger)

	return &serverFixture{
		server: NewServer(exchange, binder, workspaces, nil, logger, nil),
		codec:  codec,
		store:  store,
	}
}

func (f *serverFixture) sessionToken(t *testing.T, roles auth.RoleMap) string {
	t.Helper()
	token, err := f.codec.Mint("subject-1", "user@example.com", roles)
	if err != nil {
		t.Fatalf("failed to mint session token: %v", err)
	}
	return token
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.ErrorCode
}

func TestExchangeEndpoint(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{testWorkspaceID: auth.RoleViewer})

	r := httptest.NewRequest(http.MethodPost, "/auth/exchange", nil)
	r.Header.Set("Authorization", "Bearer good-identity")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result auth.ExchangeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.SubjectID != "subject-1" {
		t.Errorf("subject = %q", result.SubjectID)
	}
	if result.Roles[testWorkspaceID] != auth.RoleViewer {
		t.Errorf("roles = %v", result.Roles)
	}

	claims, err := f.codec.Verify(result.SessionToken)
	if err != nil {
		t.Fatalf("returned session token does not verify: %v", err)
	}
	if claims.Roles[testWorkspaceID] != auth.RoleViewer {
		t.Errorf("embedded roles = %v", claims.Roles)
	}
}

func TestExchangeEndpointWithoutToken(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/exchange", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(auth.CodeMissingIdentityToken) {
		t.Errorf("error_code = %q", code)
	}
}

func TestRefreshEndpointPicksUpNewRoles(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{testWorkspaceID: auth.RoleAdmin})

	// Session token minted before the ADMIN grant existed.
	stale := f.sessionToken(t, auth.RoleMap{})

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.Header.Set("Authorization", "Bearer good-identity")
	r.Header.Set(middleware.SessionTokenHeader, stale)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result auth.ExchangeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Roles[testWorkspaceID] != auth.RoleAdmin {
		t.Errorf("refreshed roles = %v", result.Roles)
	}
}

func workspaceRequest(method, path, sessionToken string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.Header.Set("Authorization", "Bearer good-identity")
	if sessionToken != "" {
		r.Header.Set(middleware.SessionTokenHeader, sessionToken)
	}
	return r
}

func TestGetWorkspaceAllowsViewer(t *testing.T) {
	roles := auth.RoleMap{testWorkspaceID: auth.RoleViewer}
	f := newServerFixture(t, roles)
	session := f.sessionToken(t, roles)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, workspaceRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, session))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var ws workspace.Workspace
	if err := json.NewDecoder(rec.Body).Decode(&ws); err != nil {
		t.Fatalf("failed to decode workspace: %v", err)
	}
	if ws.ID != testWorkspaceID {
		t.Errorf("workspace id = %q", ws.ID)
	}
}

func TestDeleteWorkspaceRequiresOwner(t *testing.T) {
	roles := auth.RoleMap{testWorkspaceID: auth.RoleAdmin}
	f := newServerFixture(t, roles)
	session := f.sessionToken(t, roles)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, workspaceRequest(http.MethodDelete, "/workspaces/"+testWorkspaceID, session))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(auth.CodeInsufficientPermissions) {
		t.Errorf("error_code = %q", code)
	}
}

func TestWorkspaceRouteWithoutSessionToken(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, workspaceRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(auth.CodeMissingSessionToken) {
		t.Errorf("error_code = %q", code)
	}
}

func TestWorkspaceRouteDeniesNonMember(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{})
	session := f.sessionToken(t, auth.RoleMap{})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, workspaceRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, session))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(auth.CodeUserNotAuthorized) {
		t.Errorf("error_code = %q", code)
	}
}

func TestWorkspaceRouteReconcilesStaleToken(t *testing.T) {
	// The store knows about the VIEWER grant, the session token does not.
	f := newServerFixture(t, auth.RoleMap{testWorkspaceID: auth.RoleViewer})
	stale := f.sessionToken(t, auth.RoleMap{})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, workspaceRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, stale))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want reconciled access, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t, auth.RoleMap{})

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
