// Package indexer splits documents into chunks and feeds them into tenant stores.
package indexer

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/store"
	"github.com/hyperjump/tenantrag/pkg/utils"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

const paragraphJoiner = "\n\n"

// paragraphBreak is a newline, any run of whitespace, and another newline.
var paragraphBreak = regexp.MustCompile(`\n[\s\v\p{Z}\x{1c}-\x{1f}\x{85}]*\n`)

// Chunker groups paragraphs into chunks of about chunkSize characters. Consecutive
// chunks share the last overlap characters of the previous one.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. A negative chunkSize is rejected; a non-positive
// overlap disables overlap.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size must not be negative, got %d", store.ErrMalformedInput, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: max(overlap, 0)}, nil
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunk texts of text in order. Paragraphs are never split, so a
// paragraph longer than chunkSize becomes a chunk of its own (plus any overlap seed).
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	buf, bufLen := "", 0
	for _, p := range paragraphBreak.Split(text, -1) {
		pLen := utf8.RuneCountInString(p)
		if bufLen+pLen > c.chunkSize && buf != "" {
			chunks = append(chunks, buf)
			buf = utils.Suffix(buf, c.overlap)
			bufLen = utf8.RuneCountInString(buf)
		}
		if buf != "" {
			buf += paragraphJoiner + p
			bufLen += len(paragraphJoiner) + pLen
		} else {
			buf, bufLen = p, pLen
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// ChunkID returns the id of chunk i of documentID.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, i)
}

// Chunk splits text and builds chunk records. Each chunk's metadata is a copy of base
// plus document_id and chunk_id; base itself is not modified.
func (c *Chunker) Chunk(tenantID, documentID, text string, base models.Metadata) []*models.Chunk {
	texts := c.Split(text)
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, len(texts))
	for i, t := range texts {
		meta := base.Clone()
		meta[models.MetaChunkID] = models.IntValue(int64(i))
		meta[models.MetaDocumentID] = models.StringValue(documentID)
		chunks[i] = &models.Chunk{
			ID:       ChunkID(documentID, i),
			TenantID: tenantID,
			Text:     t,
			Metadata: meta,
		}
	}
	return chunks
}
