package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/tenantrag/internal/extract"
	"github.com/hyperjump/tenantrag/internal/fileid"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/storage"
	"github.com/hyperjump/tenantrag/internal/store"
	"go.uber.org/zap"
)

const (
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// ErrNoCatalog is returned by operations that need the document catalog when none is configured.
var ErrNoCatalog = errors.New("document catalog not enabled")

// Indexer ingests documents into tenant stores and keeps the optional document catalog in step.
type Indexer struct {
	registry  *store.Registry
	chunker   *Chunker
	catalog   storage.Storage    // optional
	extractor *extract.Extractor // optional; nil reads files as plain text
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCatalog records every indexed document in catalog.
func WithCatalog(catalog storage.Storage) IndexerOption {
	return func(idx *Indexer) { idx.catalog = catalog }
}

// WithExtractor sets the extractor used by IndexFile.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer writing into registry.
func NewIndexer(registry *store.Registry, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		registry: registry,
		chunker:  chunker,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// Catalog returns the document catalog, or nil when none is configured.
func (idx *Indexer) Catalog() storage.Storage { return idx.catalog }

// Ingest chunks text and adds the chunks to the tenant's store. Chunk i gets id
// "{documentID}_chunk_{i}" and a copy of base plus chunk_id and document_id.
// It returns the number of chunks added. Empty text adds nothing.
func (idx *Indexer) Ingest(ctx context.Context, tenantID, documentID, text string, base models.Metadata) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is empty", store.ErrMalformedInput)
	}
	s, err := idx.registry.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	chunks := idx.chunker.Chunk(tenantID, documentID, text, base)
	if len(chunks) == 0 {
		return 0, nil
	}
	documents := make([]string, len(chunks))
	metadatas := make([]models.Metadata, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		documents[i] = ch.Text
		metadatas[i] = ch.Metadata
		ids[i] = ch.ID
	}
	if err := s.Add(ctx, documents, metadatas, ids); err != nil {
		return 0, err
	}
	idx.logger.Debug("document ingested",
		zap.String("tenant_id", tenantID), zap.String("document_id", documentID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IndexDocument stores and ingests a document. A missing id is generated. An existing
// document with the same id is replaced: its chunks are removed before the new ones are added.
// It returns the catalog record and the number of chunks added.
func (idx *Indexer) IndexDocument(ctx context.Context, tenantID string, input *models.DocumentInput) (*models.Document, int, error) {
	if err := store.ValidateTenantID(tenantID); err != nil {
		return nil, 0, err
	}
	if input == nil {
		return nil, 0, fmt.Errorf("%w: document is nil", store.ErrMalformedInput)
	}
	if err := input.Metadata.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", store.ErrMalformedInput, err)
	}
	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	title := input.Title
	if title == "" && input.Filename != "" {
		title = strings.TrimSuffix(input.Filename, filepath.Ext(input.Filename))
	}

	base := input.Metadata.Clone()
	if title != "" {
		base[models.MetaTitle] = models.StringValue(title)
	}
	if input.Filename != "" {
		base[models.MetaFilename] = models.StringValue(input.Filename)
	}
	if input.FilePath != "" {
		base[models.MetaSourcePath] = models.StringValue(input.FilePath)
	}

	doc := &models.Document{
		ID:       id,
		TenantID: tenantID,
		Title:    title,
		Content:  input.Content,
		Metadata: base,
		FilePath: input.FilePath,
	}
	if idx.catalog != nil {
		if old, err := idx.catalog.GetDocument(ctx, tenantID, id); err == nil {
			doc.CreatedAt = old.CreatedAt
		}
		if err := idx.catalog.UpsertDocument(ctx, doc); err != nil {
			return nil, 0, fmt.Errorf("failed to store document: %w", err)
		}
	}

	s, err := idx.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	if removed, err := s.DeleteWhere(ctx, documentFilter(id)); err != nil {
		return nil, 0, fmt.Errorf("failed to replace document chunks: %w", err)
	} else if removed > 0 {
		idx.logger.Debug("replacing document", zap.String("tenant_id", tenantID),
			zap.String("document_id", id), zap.Int("old_chunks", removed))
	}
	n, err := idx.Ingest(ctx, tenantID, id, input.Content, base)
	if err != nil {
		return doc, 0, err
	}
	return doc, n, nil
}

// UpdateDocument applies a partial update to a cataloged document and re-indexes it, so
// its chunks always reflect the merged record. A missing document returns storage.ErrNotFound.
func (idx *Indexer) UpdateDocument(ctx context.Context, tenantID, documentID string, update *models.DocumentUpdate) (*models.Document, int, error) {
	if idx.catalog == nil {
		return nil, 0, ErrNoCatalog
	}
	if err := store.ValidateTenantID(tenantID); err != nil {
		return nil, 0, err
	}
	if documentID == "" {
		return nil, 0, fmt.Errorf("%w: document id is empty", store.ErrMalformedInput)
	}
	if update == nil {
		return nil, 0, fmt.Errorf("%w: update is nil", store.ErrMalformedInput)
	}
	if err := update.Metadata.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", store.ErrMalformedInput, err)
	}
	current, err := idx.catalog.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, 0, err
	}

	input := &models.DocumentInput{
		ID:       documentID,
		Title:    current.Title,
		Filename: current.Metadata.GetString(models.MetaFilename),
		FilePath: current.FilePath,
		Content:  current.Content,
		Metadata: current.Metadata.Clone(),
	}
	delete(input.Metadata, models.MetaTitle)
	if update.Title != nil {
		input.Title = *update.Title
	}
	if update.Content != nil {
		input.Content = *update.Content
	}
	if update.Metadata != nil {
		input.Metadata = update.Metadata.Clone()
	}
	idx.logger.Debug("updating document", zap.String("tenant_id", tenantID), zap.String("document_id", documentID))
	return idx.IndexDocument(ctx, tenantID, input)
}

// IndexFile extracts text from the file at path and indexes it under a document id
// derived from the tenant and the absolute path, so re-indexing replaces the same document.
// If allowedExts is non-empty, the file's extension must be in it (case-insensitive).
// With a catalog configured, files whose size and mtime are unchanged are skipped
// and reported with zero chunks.
func (idx *Indexer) IndexFile(ctx context.Context, tenantID, path string, allowedExts []string) (*models.Document, int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, 0, fmt.Errorf("absolute path: %w", err)
	}
	idx.logger.Debug("indexing file", zap.String("tenant_id", tenantID), zap.String("path", absPath))
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, 0, fmt.Errorf("%w: extension %q not in allowed list", store.ErrMalformedInput, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := fileid.FileDocID(tenantID, absPath)
	if doc, ok := idx.unchanged(ctx, tenantID, docID, absPath, info); ok {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return doc, 0, nil
	}

	text, err := idx.extractContent(absPath)
	if err != nil {
		return nil, 0, fmt.Errorf("extract content: %w", err)
	}
	name := filepath.Base(absPath)
	doc, n, err := idx.IndexDocument(ctx, tenantID, &models.DocumentInput{
		ID:       docID,
		Title:    name,
		Filename: name,
		FilePath: absPath,
		Content:  Preprocess(text),
		Metadata: models.Metadata{
			metaKeySourceMtime: models.IntValue(info.ModTime().UnixNano()),
			metaKeySourceSize:  models.IntValue(info.Size()),
		},
	})
	if err != nil {
		return doc, n, err
	}
	idx.logger.Debug("file indexed", zap.String("path", absPath), zap.String("document_id", docID), zap.Int("chunks", n))
	return doc, n, nil
}

// unchanged reports whether the catalog already holds docID for absPath with the same
// size and mtime, and that the tenant store still has its chunks.
func (idx *Indexer) unchanged(ctx context.Context, tenantID, docID, absPath string, info os.FileInfo) (*models.Document, bool) {
	if idx.catalog == nil {
		return nil, false
	}
	doc, err := idx.catalog.GetDocument(ctx, tenantID, docID)
	if err != nil || doc.FilePath != absPath {
		return nil, false
	}
	mtime, _ := doc.Metadata[metaKeySourceMtime].Int()
	size, _ := doc.Metadata[metaKeySourceSize].Int()
	if mtime != info.ModTime().UnixNano() || size != info.Size() {
		return nil, false
	}
	s, err := idx.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, false
	}
	if _, ok := s.Get(ChunkID(docID, 0)); !ok && strings.TrimSpace(doc.Content) != "" {
		return nil, false
	}
	return doc, true
}

// IndexDirectory walks dir (recursively when recursive is set) and indexes each regular
// file whose extension is in allowedExts, or every file when allowedExts is empty.
// It returns the number of files indexed and stops at the first error.
func (idx *Indexer) IndexDirectory(ctx context.Context, tenantID, dir string, allowedExts []string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are indexed.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, _, indexErr := idx.IndexFile(ctx, tenantID, path, allowedExts); indexErr != nil {
			return indexErr
		}
		n++
		return nil
	})
	return n, err
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

func documentFilter(documentID string) models.Metadata {
	return models.Metadata{models.MetaDocumentID: models.StringValue(documentID)}
}

// DeleteDocument removes every chunk whose document_id is documentID, then the catalog
// record. It returns the number of chunks removed; unknown documents are a no-op.
func (idx *Indexer) DeleteDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is empty", store.ErrMalformedInput)
	}
	s, err := idx.registry.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	removed, err := s.DeleteWhere(ctx, documentFilter(documentID))
	if err != nil {
		return removed, err
	}
	if idx.catalog != nil {
		if err := idx.catalog.DeleteDocument(ctx, tenantID, documentID); err != nil {
			return removed, fmt.Errorf("failed to delete document: %w", err)
		}
	}
	idx.logger.Debug("document deleted", zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID), zap.Int("chunks", removed))
	return removed, nil
}

// DeleteFile removes the document indexed from path.
func (idx *Indexer) DeleteFile(ctx context.Context, tenantID, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	return idx.DeleteDocument(ctx, tenantID, fileid.FileDocID(tenantID, absPath))
}

// DeleteTenant removes the tenant's store, its persisted snapshot, and its catalog records.
func (idx *Indexer) DeleteTenant(ctx context.Context, tenantID string) error {
	err := idx.registry.Delete(ctx, tenantID)
	if errors.Is(err, store.ErrMalformedInput) {
		return err
	}
	if idx.catalog != nil {
		n, cerr := idx.catalog.DeleteTenant(ctx, tenantID)
		if cerr != nil {
			return errors.Join(err, fmt.Errorf("failed to delete catalog records: %w", cerr))
		}
		idx.logger.Debug("catalog records deleted", zap.String("tenant_id", tenantID), zap.Int64("documents", n))
	}
	if err != nil {
		return err
	}
	idx.logger.Info("tenant deleted", zap.String("tenant_id", tenantID))
	return nil
}
