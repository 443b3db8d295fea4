package storage

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

	"github.com/hyperjump/tenantrag/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		metadata TEXT,
		file_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant_created ON documents(tenant_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts or replaces a document record.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, id, title, content, metadata, file_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, id) DO UPDATE SET
		   title = excluded.title, content = excluded.content, metadata = excluded.metadata,
		   file_path = excluded.file_path, updated_at = excluded.updated_at`,
		doc.TenantID, doc.ID, doc.Title, doc.Content, string(metadataJSON), doc.FilePath, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

const documentColumns = `tenant_id, id, title, content, metadata, file_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var metadataJSON, filePath sql.NullString
	if err := row.Scan(&doc.TenantID, &doc.ID, &doc.Title, &doc.Content, &metadataJSON, &filePath, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.FilePath = filePath.String
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// GetDocument returns a document by tenant and id.
func (s *SQLiteStorage) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document by tenant and id.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, tenantID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return err
}

// ListDocuments returns the tenant's documents, newest first, with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, tenantID string, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ?
		 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteTenant removes all of a tenant's documents.
func (s *SQLiteStorage) DeleteTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountDocuments returns the number of documents for a tenant.
func (s *SQLiteStorage) CountDocuments(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE tenant_id = ?`, tenantID).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
