package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLitePersister stores one JSON snapshot row per tenant.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens or creates the database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer connection; tenant writes are already serialized per tenant.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS tenant_snapshots (
		tenant_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

// Kind returns "sqlite".
func (p *SQLitePersister) Kind() string { return BackendSQLite }

// Load returns the tenant's snapshot row.
func (p *SQLitePersister) Load(ctx context.Context, tenantID string) (*Snapshot, error) {
	var payload string
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM tenant_snapshots WHERE tenant_id = ?`, tenantID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save upserts the tenant's snapshot row.
func (p *SQLitePersister) Save(ctx context.Context, tenantID string, snap *Snapshot) error {
	data, err := json.Marshal(snap.normalized())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO tenant_snapshots (tenant_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		tenantID, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Delete removes the tenant's snapshot row.
func (p *SQLitePersister) Delete(ctx context.Context, tenantID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM tenant_snapshots WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Tenants lists tenant ids with a stored snapshot.
func (p *SQLitePersister) Tenants(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_snapshots ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
