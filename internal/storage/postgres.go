package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatekeeper/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tenants (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL,
    creator_tier          TEXT NOT NULL DEFAULT '',
    suspended             BOOLEAN NOT NULL DEFAULT FALSE,
    override_window_ms    BIGINT NOT NULL DEFAULT 0,
    override_max_requests BIGINT NOT NULL DEFAULT 0,
    created_at            TIMESTAMPTZ NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL
);`

// PostgresStorage implements the Storage interface on PostgreSQL for
// multi-node deployments that share one tenant directory.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a connection pool against the configured DSN
// and ensures the schema exists.
func NewPostgresStorage(config models.StorageConfig) (Storage, error) {
	if config.Database.DSN == "" {
		return nil, fmt.Errorf("database DSN is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if config.Database.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.Database.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Tenants returns all known tenants, sorted by ID.
func (ps *PostgresStorage) Tenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at
		FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatorTier, &t.Suspended,
			&t.Overrides.WindowMs, &t.Overrides.MaxRequests, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

// GetTenant retrieves a tenant by its ID.
func (ps *PostgresStorage) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := ps.pool.QueryRow(ctx, `
		SELECT id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at
		FROM tenants WHERE id = $1`, tenantID).
		Scan(&t.ID, &t.Name, &t.CreatorTier, &t.Suspended,
			&t.Overrides.WindowMs, &t.Overrides.MaxRequests, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant %s: %w", tenantID, err)
	}
	return &t, nil
}

// SaveTenant stores or updates a tenant.
func (ps *PostgresStorage) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now().UTC()
	createdAt := tenant.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    creator_tier = EXCLUDED.creator_tier,
		    suspended = EXCLUDED.suspended,
		    override_window_ms = EXCLUDED.override_window_ms,
		    override_max_requests = EXCLUDED.override_max_requests,
		    updated_at = EXCLUDED.updated_at`,
		tenant.ID, tenant.Name, tenant.CreatorTier, tenant.Suspended,
		tenant.Overrides.WindowMs, tenant.Overrides.MaxRequests, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save tenant %s: %w", tenant.ID, err)
	}
	return nil
}

// DeleteTenant removes a tenant by its ID.
func (ps *PostgresStorage) DeleteTenant(ctx context.Context, tenantID string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant %s: %w", tenantID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies the database is reachable.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
