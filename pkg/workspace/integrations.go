package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Integration is an external tool connection stored inside the workspace's
// own namespace.
type Integration struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspace_id"`
	Provider         string    `json:"provider"`
	DisplayName      string    `json:"display_name,omitempty"`
	URL              string    `json:"url,omitempty"`
	ConnectionStatus string    `json:"connection_status,omitempty"`
	AddedBy          string    `json:"added_by,omitempty"`
	AddedAt          time.Time `json:"added_at"`
}

// IntegrationStore reads and writes integration rows in per-workspace
// namespaces. Every query resolves the namespace through the Resolver, so
// reads stay correct even when the mapping row is temporarily unreadable.
type IntegrationStore struct {
	db       *sql.DB
	resolver *Resolver
}

// NewIntegrationStore creates an integration store
func NewIntegrationStore(db *sql.DB, resolver *Resolver) *IntegrationStore {
	return &IntegrationStore{db: db, resolver: resolver}
}

// List returns the workspace's integrations, newest first
func (s *IntegrationStore) List(ctx context.Context, workspaceID string) ([]*Integration, error) {
	ns := s.resolver.Resolve(ctx, workspaceID)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT workspace_integration_id, workspace_id, provider, COALESCE(display_name, ''),
		       COALESCE(url, ''), COALESCE(connection_status, ''), COALESCE(added_by, ''), added_at
		FROM %s.workspace_integrations
		WHERE workspace_id = $1
		ORDER BY added_at DESC
	`, ns), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		var in Integration
		if err := rows.Scan(&in.ID, &in.WorkspaceID, &in.Provider, &in.DisplayName,
			&in.URL, &in.ConnectionStatus, &in.AddedBy, &in.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

// Add inserts an integration into the workspace's namespace
func (s *IntegrationStore) Add(ctx context.Context, workspaceID, provider, displayName, url, addedBy string) (*Integration, error) {
	if provider == "" {
		return nil, fmt.Errorf("integration provider is required")
	}

	ns := s.resolver.Resolve(ctx, workspaceID)
	in := &Integration{
		ID:               uuid.NewString(),
		WorkspaceID:      workspaceID,
		Provider:         provider,
		DisplayName:      displayName,
		URL:              url,
		ConnectionStatus: "Connected",
		AddedBy:          addedBy,
	}

	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.workspace_integrations
			(workspace_integration_id, workspace_id, provider, display_name, url, connection_status, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING added_at
	`, ns), in.ID, in.WorkspaceID, in.Provider, in.DisplayName, in.URL, in.ConnectionStatus, in.AddedBy).Scan(&in.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add integration: %w", err)
	}
	return in, nil
}
