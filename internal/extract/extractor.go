// Package extract turns document files into plain text for ingestion.
//
// Extractors keep paragraph structure: paragraphs, slides, pages, and sheets are
// separated by a blank line so the chunker can split on them.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type extractFunc func(content []byte) (string, error)

var extractors = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".csv":  extractPlain,
	".json": extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".odt":  extractCat,
	".rtf":  extractCat,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions with a dedicated extractor, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether ext (with leading dot, any case) has a dedicated extractor.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		fn = extractPlain
	}
	return fn(content)
}
