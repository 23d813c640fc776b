package storage

import (
	"context"

	"gatekeeper/internal/models"
)

// Storage persists tenant records. The admission pipeline reads a tenant on
// every non-public request, so implementations are expected to serve reads
// cheaply; the admin surface uses the rest.
type Storage interface {
	// Tenants returns all known tenants.
	Tenants(ctx context.Context) ([]*models.Tenant, error)

	// GetTenant retrieves a tenant by its ID. Returns ErrNotFound when no
	// such tenant exists.
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)

	// SaveTenant stores or updates a tenant.
	SaveTenant(ctx context.Context, tenant *models.Tenant) error

	// DeleteTenant removes a tenant by its ID.
	DeleteTenant(ctx context.Context, tenantID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection and cleans up resources.
	Close() error
}
