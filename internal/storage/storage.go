// Package storage keeps the tenant-scoped document catalog and disk usage helpers.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tenantrag/internal/models"
)

// ErrNotFound is returned when a catalog record does not exist.
var ErrNotFound = errors.New("document not found")

// Storage is the document catalog. Every operation is scoped to one tenant;
// the same document id may exist under different tenants.
type Storage interface {
	// UpsertDocument inserts doc or replaces the record with the same tenant and id.
	// CreatedAt is kept on replace.
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
	// DeleteDocument removes the record. Missing records are not an error.
	DeleteDocument(ctx context.Context, tenantID, id string) error
	ListDocuments(ctx context.Context, tenantID string, offset, limit int) ([]*models.Document, error)
	// DeleteTenant removes every record of the tenant and returns how many were removed.
	DeleteTenant(ctx context.Context, tenantID string) (int64, error)
	CountDocuments(ctx context.Context, tenantID string) (int64, error)

	Close() error
}
