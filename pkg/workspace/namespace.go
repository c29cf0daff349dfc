package workspace

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NamespacePrefix prefixes every workspace namespace name
const NamespacePrefix = "ws_"

// NamespaceFor derives the storage namespace name for a workspace ID.
// The derivation is a pure, collision-free function of the ID alone: the
// canonical UUID with hyphens stripped, prefixed with "ws_".
//
// Example: 123e4567-e89b-12d3-a456-426614174000
// becomes ws_123e4567e89b12d3a456426614174000
func NamespaceFor(workspaceID string) string {
	return NamespacePrefix + strings.ReplaceAll(strings.ToLower(workspaceID), "-", "")
}

// ValidateID checks that a workspace ID has the canonical UUID shape.
// IDs that fail this check are treated as absent by the request binding
// layer, so no workspace-scoped role is ever resolved for them.
func ValidateID(workspaceID string) error {
	if len(workspaceID) != 36 {
		return fmt.Errorf("workspace id must be a canonical UUID")
	}
	if _, err := uuid.Parse(workspaceID); err != nil {
		return fmt.Errorf("workspace id is not a valid UUID: %w", err)
	}
	return nil
}

// NewID generates a fresh workspace ID
func NewID() string {
	return uuid.NewString()
}
