package config

import "path/filepath"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultDataDir      = "/usr/local/var/tenantrag/data"
)

// DefaultExtensions are the file types ingested from watched inboxes when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".odt", ".rtf"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = defaultDataDir
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = filepath.Join(cfg.Store.DataDir, "snapshots.db")
	}
	if cfg.Store.CatalogPath == "" {
		cfg.Store.CatalogPath = filepath.Join(cfg.Store.DataDir, "documents.db")
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = defaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == nil {
		o := defaultChunkOverlap
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 100
	}
	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = min(5, cfg.Retrieval.MaxResults)
	}
	if cfg.Retrieval.Scorer == "" {
		cfg.Retrieval.Scorer = "overlap"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 500
	}
	if cfg.Watch.Directory != "" && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
