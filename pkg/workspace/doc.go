// Package workspace implements the tenant lifecycle: atomic provisioning
// of a workspace with its isolated storage namespace, membership management
// with the last-OWNER guarantee, and namespace resolution through a layered
// cache that degrades to pure derivation from the workspace ID.
package workspace
