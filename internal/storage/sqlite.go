package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"gatekeeper/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL,
    creator_tier          TEXT NOT NULL DEFAULT '',
    suspended             INTEGER NOT NULL DEFAULT 0,
    override_window_ms    INTEGER NOT NULL DEFAULT 0,
    override_max_requests INTEGER NOT NULL DEFAULT 0,
    created_at            TIMESTAMP NOT NULL,
    updated_at            TIMESTAMP NOT NULL
);`

// SQLiteStorage implements the Storage interface on a local SQLite file,
// suitable for single-node deployments.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and if needed initializes) the database at the
// configured DSN.
func NewSQLiteStorage(config models.StorageConfig) (Storage, error) {
	if config.Database.DSN == "" {
		return nil, fmt.Errorf("database DSN is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.Database.MaxOpenConns)
	}
	if config.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.Database.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Tenants returns all known tenants, sorted by ID.
func (ss *SQLiteStorage) Tenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at
		FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetTenant retrieves a tenant by its ID.
func (ss *SQLiteStorage) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at
		FROM tenants WHERE id = ?`, tenantID)

	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// SaveTenant stores or updates a tenant.
func (ss *SQLiteStorage) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now().UTC()
	createdAt := tenant.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, creator_tier, suspended, override_window_ms, override_max_requests, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    creator_tier = excluded.creator_tier,
		    suspended = excluded.suspended,
		    override_window_ms = excluded.override_window_ms,
		    override_max_requests = excluded.override_max_requests,
		    updated_at = excluded.updated_at`,
		tenant.ID, tenant.Name, tenant.CreatorTier, tenant.Suspended,
		tenant.Overrides.WindowMs, tenant.Overrides.MaxRequests, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save tenant %s: %w", tenant.ID, err)
	}
	return nil
}

// DeleteTenant removes a tenant by its ID.
func (ss *SQLiteStorage) DeleteTenant(ctx context.Context, tenantID string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant %s: %w", tenantID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies the database is reachable.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatorTier, &t.Suspended,
		&t.Overrides.WindowMs, &t.Overrides.MaxRequests, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return &t, nil
}
