package auth

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/atriumhq/atrium/pkg/observability"
)

// Binder produces the per-request authorization context. It validates both
// tokens, cross-checks the subject, and resolves the effective role for the
// workspace targeted by the request, falling back to a fresh role-store
// lookup when the session token's embedded snapshot has no entry.
type Binder struct {
	verifier IdentityVerifier
	codec    *SessionCodec
	roles    RoleStore
	logger   *observability.Logger
	metrics  *observability.Metrics

	// reconcile collapses concurrent role reloads for the same subject
	reconcile singleflight.Group
}

// NewBinder creates a binder
func NewBinder(verifier IdentityVerifier, codec *SessionCodec, roles RoleStore, logger *observability.Logger) *Binder {
	return &Binder{
		verifier: verifier,
		codec:    codec,
		roles:    roles,
		logger:   logger,
	}
}

// WithMetrics enables reconciliation outcome instrumentation
func (b *Binder) WithMetrics(metrics *observability.Metrics) *Binder {
	b.metrics = metrics
	return b
}

// Bind validates the identity and session tokens and returns the immutable
// authorization context for the request. workspaceID may be empty for
// requests that are not workspace-scoped; no role is resolved then.
//
// Bind never rejects for "no role in this workspace"; that decision
// belongs to Check. It rejects only missing, invalid, or mismatched tokens.
func (b *Binder) Bind(ctx context.Context, identityToken, sessionToken, workspaceID string) (*Context, error) {
	if identityToken == "" {
		return nil, ErrMissingIdentityToken
	}
	if sessionToken == "" {
		return nil, ErrMissingSessionToken
	}

	identity, err := b.verifier.Verify(ctx, identityToken)
	if err != nil {
		b.logger.WithError(err).Warn("identity token rejected")
		return nil, ErrInvalidIdentityToken
	}

	session, err := b.codec.Verify(sessionToken)
	if err != nil {
		b.logger.WithError(err).Warn("session token rejected")
		return nil, ErrInvalidSessionToken
	}

	if identity.SubjectID != session.SubjectID {
		return nil, ErrTokenMismatch
	}

	authCtx := &Context{
		SubjectID:   session.SubjectID,
		Email:       session.Email,
		Roles:       session.Roles.Clone(),
		WorkspaceID: workspaceID,
	}

	if workspaceID == "" {
		return authCtx, nil
	}

	role, ok := authCtx.Roles.RoleFor(workspaceID)
	if !ok {
		// Expected for a workspace created or joined after the session
		// token was minted. Reconcile read-only against the store and
		// retry the lookup; the client's token stays stale until it
		// calls refresh explicitly.
		if fresh := b.reconcileRoles(ctx, session.SubjectID); fresh != nil {
			for id, r := range fresh {
				authCtx.Roles[id] = r
			}
			role, ok = authCtx.Roles.RoleFor(workspaceID)
		}
	}
	if ok {
		authCtx.WorkspaceRole = &role
	}

	return authCtx, nil
}

// reconcileRoles loads the subject's full current role map from the store.
// Failures degrade to nil: the request proceeds with the embedded snapshot.
func (b *Binder) reconcileRoles(ctx context.Context, subjectID string) RoleMap {
	v, err, _ := b.reconcile.Do(subjectID, func() (interface{}, error) {
		return b.roles.GetRoles(ctx, subjectID)
	})
	if err != nil {
		b.logger.WithError(err).WithField("subject_id", subjectID).
			Warn("role reconciliation lookup failed")
		b.countReconciliation("error")
		return nil
	}
	roles, _ := v.(RoleMap)
	b.countReconciliation("success")
	return roles
}

func (b *Binder) countReconciliation(outcome string) {
	if b.metrics != nil {
		b.metrics.ReconciliationsTotal.WithLabelValues(outcome).Inc()
	}
}
