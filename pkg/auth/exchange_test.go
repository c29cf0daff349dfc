package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/atriumhq/atrium/pkg/observability"
)

// fakeVerifier accepts any token listed in claims and rejects the rest
type fakeVerifier struct {
	claims map[string]*IdentityClaims
}

func (f *fakeVerifier) Verify(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	if c, ok := f.claims[rawToken]; ok {
		return c, nil
	}
	return nil, errors.New("unknown token")
}

// fakeRoleStore serves a fixed role map, optionally failing every call
type fakeRoleStore struct {
	roles map[string]RoleMap
	err   error
	calls int
}

func (f *fakeRoleStore) GetRoles(ctx context.Context, subjectID string) (RoleMap, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if roles, ok := f.roles[subjectID]; ok {
		return roles.Clone(), nil
	}
	return RoleMap{}, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newExchangeFixture(store *fakeRoleStore) (*ExchangeService, *SessionCodec) {
	verifier := &fakeVerifier{claims: map[string]*IdentityClaims{
		"good-identity":  {SubjectID: "subject-1", Email: "user@example.com", DisplayName: "User One"},
		"other-identity": {SubjectID: "subject-2", Email: "other@example.com", DisplayName: "Other"},
	}}
	codec := NewSessionCodec(testSecret, time.Hour)
	return NewExchangeService(verifier, codec, store, testLogger()), codec
}

func TestExchangeMintsSessionWithCurrentRoles(t *testing.T) {
	store := &fakeRoleStore{roles: map[string]RoleMap{
		"subject-1": {"ws-a": RoleAdmin},
	}}
	svc, codec := newExchangeFixture(store)

	result, err := svc.Exchange(context.Background(), "good-identity")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if result.SubjectID != "subject-1" || result.Email != "user@example.com" {
		t.Errorf("unexpected result identity: %+v", result)
	}
	if result.Roles["ws-a"] != RoleAdmin {
		t.Errorf("unexpected roles: %v", result.Roles)
	}

	claims, err := codec.Verify(result.SessionToken)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.SubjectID != "subject-1" || claims.Roles["ws-a"] != RoleAdmin {
		t.Errorf("unexpected embedded claims: %+v", claims)
	}
}

func TestExchangeRejectsMissingToken(t *testing.T) {
	svc, _ := newExchangeFixture(&fakeRoleStore{})

	_, err := svc.Exchange(context.Background(), "")
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeMissingIdentityToken {
		t.Errorf("Exchange(\"\") = %v, want MISSING_IDENTITY_TOKEN", err)
	}
}

func TestExchangeRejectsInvalidToken(t *testing.T) {
	svc, _ := newExchangeFixture(&fakeRoleStore{})

	_, err := svc.Exchange(context.Background(), "forged")
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeInvalidIdentityToken {
		t.Errorf("Exchange(forged) = %v, want INVALID_IDENTITY_TOKEN", err)
	}
}

func TestExchangeDegradesToEmptyRolesOnStoreFailure(t *testing.T) {
	store := &fakeRoleStore{err: errors.New("connection refused")}
	svc, codec := newExchangeFixture(store)

	result, err := svc.Exchange(context.Background(), "good-identity")
	if err != nil {
		t.Fatalf("expected exchange to succeed despite store failure, got %v", err)
	}
	if len(result.Roles) != 0 {
		t.Errorf("expected empty role map, got %v", result.Roles)
	}

	claims, err := codec.Verify(result.SessionToken)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if len(claims.Roles) != 0 {
		t.Errorf("expected empty embedded roles, got %v", claims.Roles)
	}
}

func TestRefreshReloadsRolesFromStore(t *testing.T) {
	store := &fakeRoleStore{roles: map[string]RoleMap{
		"subject-1": {"ws-a": RoleViewer},
	}}
	svc, codec := newExchangeFixture(store)

	first, err := svc.Exchange(context.Background(), "good-identity")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	// A role granted after the first mint shows up only after refresh.
	store.roles["subject-1"]["ws-b"] = RoleAdmin

	refreshed, err := svc.Refresh(context.Background(), "good-identity", first.SessionToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.Roles["ws-b"] != RoleAdmin {
		t.Errorf("expected refreshed token to carry new role, got %v", refreshed.Roles)
	}

	claims, err := codec.Verify(refreshed.SessionToken)
	if err != nil {
		t.Fatalf("refreshed token does not verify: %v", err)
	}
	if claims.Roles["ws-b"] != RoleAdmin {
		t.Errorf("unexpected embedded roles: %v", claims.Roles)
	}
}

func TestRefreshRejectsSubjectMismatch(t *testing.T) {
	store := &fakeRoleStore{}
	svc, _ := newExchangeFixture(store)

	first, err := svc.Exchange(context.Background(), "good-identity")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	// Session token for subject-1 presented with subject-2's identity.
	_, err = svc.Refresh(context.Background(), "other-identity", first.SessionToken)
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeTokenMismatch {
		t.Errorf("Refresh with mismatched subject = %v, want TOKEN_MISMATCH", err)
	}
}

func TestRefreshRejectsMissingTokens(t *testing.T) {
	svc, _ := newExchangeFixture(&fakeRoleStore{})

	_, err := svc.Refresh(context.Background(), "", "some-session")
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeMissingIdentityToken {
		t.Errorf("Refresh without identity token = %v", err)
	}

	_, err = svc.Refresh(context.Background(), "good-identity", "")
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeMissingSessionToken {
		t.Errorf("Refresh without session token = %v", err)
	}
}

func TestRefreshRejectsInvalidSessionToken(t *testing.T) {
	svc, _ := newExchangeFixture(&fakeRoleStore{})

	_, err := svc.Refresh(context.Background(), "good-identity", "garbage")
	if authErr := AsError(err); authErr == nil || authErr.Code != CodeInvalidSessionToken {
		t.Errorf("Refresh with bad session token = %v, want INVALID_SESSION_TOKEN", err)
	}
}

func TestRefreshFallsBackToPriorRolesOnStoreFailure(t *testing.T) {
	store := &fakeRoleStore{roles: map[string]RoleMap{
		"subject-1": {"ws-a": RoleOwner},
	}}
	svc, _ := newExchangeFixture(store)

	first, err := svc.Exchange(context.Background(), "good-identity")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	store.err = errors.New("store down")

	refreshed, err := svc.Refresh(context.Background(), "good-identity", first.SessionToken)
	if err != nil {
		t.Fatalf("expected refresh to succeed on store failure, got %v", err)
	}
	if refreshed.Roles["ws-a"] != RoleOwner {
		t.Errorf("expected prior role snapshot to carry over, got %v", refreshed.Roles)
	}
}
