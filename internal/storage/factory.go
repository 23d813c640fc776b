package storage

import (
	"fmt"

	"gatekeeper/internal/models"
)

// Factory provides a centralized way to create storage instances based on
// configuration, so backends can be swapped without code changes.
type Factory struct{}

// NewFactory creates a new storage factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage backend based on the provided configuration.
// Supported backends:
//   - memory: in-memory storage (testing/development)
//   - sqlite: SQLite database storage (single node)
//   - postgres: PostgreSQL database storage (multi-node)
func (f *Factory) Create(config models.StorageConfig) (Storage, error) {
	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(), nil
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(config)
	case models.StorageTypePostgres:
		return NewPostgresStorage(config)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// SupportedTypes returns all storage backend types the factory can create.
func (f *Factory) SupportedTypes() []string {
	return []string{models.StorageTypeMemory, models.StorageTypeSQLite, models.StorageTypePostgres}
}
