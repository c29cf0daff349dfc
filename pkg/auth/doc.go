// Package auth implements identity federation and workspace-scoped
// authorization for the Atrium platform.
//
// A client authenticates in two steps. First it presents an externally
// issued OIDC identity token to ExchangeService.Exchange, which validates
// the token against the issuer's published signing keys, loads the
// subject's per-workspace roles from the role store, and mints a compact
// signed session token embedding that role snapshot. Every subsequent
// workspace-scoped request carries both tokens; the Binder validates them,
// cross-checks that they name the same subject, and resolves the effective
// role for the workspace in the request path.
//
// The session token's embedded role map is a cache, not a source of truth.
// When it has no entry for the requested workspace, which is the normal
// case right after a workspace is created or joined, the Binder reconciles by
// reloading the subject's current roles from the store for that request
// only. The client's stored token stays stale until it calls Refresh.
//
// Role hierarchy is fixed and totally ordered:
//
//	VIEWER < MEMBER < ADMIN < OWNER
//
// Check is the single decision function; handlers never inspect roles
// directly.
package auth
