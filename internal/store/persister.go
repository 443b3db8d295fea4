package store

import (
	"context"
	"fmt"

	"github.com/hyperjump/tenantrag/internal/models"
)

// Snapshot is the durable form of a tenant store: three parallel sequences, un-versioned.
type Snapshot struct {
	Documents []string          `json:"documents"`
	Metadatas []models.Metadata `json:"metadatas"`
	IDs       []string          `json:"ids"`
}

// Len returns the number of chunks in the snapshot.
func (s *Snapshot) Len() int { return len(s.IDs) }

// Validate checks that the parallel sequences are aligned.
func (s *Snapshot) Validate() error {
	if len(s.Documents) != len(s.IDs) || len(s.Metadatas) != len(s.IDs) {
		return fmt.Errorf("%w: snapshot has %d documents, %d metadatas, %d ids",
			ErrMalformedInput, len(s.Documents), len(s.Metadatas), len(s.IDs))
	}
	return nil
}

func (s *Snapshot) normalized() *Snapshot {
	out := *s
	if out.Documents == nil {
		out.Documents = []string{}
	}
	if out.Metadatas == nil {
		out.Metadatas = []models.Metadata{}
	}
	if out.IDs == nil {
		out.IDs = []string{}
	}
	return &out
}

// Persister reads and writes tenant snapshots.
type Persister interface {
	// Kind names the backend ("file", "sqlite").
	Kind() string
	// Load returns ErrSnapshotNotFound when the tenant has never been saved.
	Load(ctx context.Context, tenantID string) (*Snapshot, error)
	// Save writes snap durably. The slices in snap belong to the callee; metadata maps are
	// never mutated once added.
	Save(ctx context.Context, tenantID string, snap *Snapshot) error
	// Delete removes the tenant's snapshot. Missing snapshots are not an error.
	Delete(ctx context.Context, tenantID string) error
	Close() error
}
