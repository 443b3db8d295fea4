// Package models defines core data structures for chunks, documents, metadata, and retrieval results.
package models

import "time"

// Well-known metadata keys.
const (
	MetaDocumentID = "document_id"
	MetaChunkID    = "chunk_id"
	MetaTitle      = "title"
	MetaFilename   = "filename"
	MetaSourcePath = "source_path"
)

// Chunk is a contiguous slice of a document's text, stored and scored independently.
type Chunk struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Document is a catalog record for an ingested document.
type Document struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
	FilePath  string    `json:"file_path,omitempty" db:"file_path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for creating or replacing a document.
type DocumentInput struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title,omitempty"`
	Filename string   `json:"filename,omitempty"`
	FilePath string   `json:"-"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// DocumentUpdate is a partial update of a cataloged document. Nil fields keep the stored
// value; a non-nil Metadata replaces the stored user metadata.
type DocumentUpdate struct {
	Title    *string  `json:"title,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}
