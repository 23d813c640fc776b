package storage

import (
	"context"
	"sort"
	"sync"

	"gatekeeper/internal/models"
)

// MemoryStorage keeps tenants in a map. It backs tests and single-node
// development setups where persistence across restarts does not matter.
type MemoryStorage struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

// NewMemoryStorage creates an empty in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tenants: make(map[string]*models.Tenant)}
}

// Tenants returns all known tenants, sorted by ID.
func (ms *MemoryStorage) Tenants(ctx context.Context) ([]*models.Tenant, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	tenants := make([]*models.Tenant, 0, len(ms.tenants))
	for _, t := range ms.tenants {
		copied := *t
		tenants = append(tenants, &copied)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

// GetTenant retrieves a tenant by its ID.
func (ms *MemoryStorage) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	t, ok := ms.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// SaveTenant stores or updates a tenant.
func (ms *MemoryStorage) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	copied := *tenant
	ms.tenants[tenant.ID] = &copied
	return nil
}

// DeleteTenant removes a tenant by its ID.
func (ms *MemoryStorage) DeleteTenant(ctx context.Context, tenantID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.tenants[tenantID]; !ok {
		return ErrNotFound
	}
	delete(ms.tenants, tenantID)
	return nil
}

// Ping always succeeds for the in-memory backend.
func (ms *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (ms *MemoryStorage) Close() error { return nil }
