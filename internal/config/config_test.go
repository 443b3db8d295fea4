package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
store:
  data_dir: "./data"
  backend: sqlite
chunking:
  chunk_size: 500
  chunk_overlap: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("unexpected server addr: %s", cfg.Server.Addr())
	}
	dir := filepath.Dir(path)
	if cfg.Store.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data_dir = %q", cfg.Store.DataDir)
	}
	if cfg.Store.CatalogPath != filepath.Join(dir, "data", "documents.db") {
		t.Errorf("catalog_path = %q", cfg.Store.CatalogPath)
	}
	if cfg.Store.SnapshotDir() != filepath.Join(dir, "data", "vector_store") {
		t.Errorf("snapshot dir = %q", cfg.Store.SnapshotDir())
	}
	if cfg.Store.Backend != "sqlite" || cfg.Chunking.ChunkSize != 500 {
		t.Errorf("unexpected store/chunking: %+v %+v", cfg.Store, cfg.Chunking)
	}
	if cfg.Chunking.OverlapOrDefault() != 0 {
		t.Errorf("explicit zero overlap should be kept, got %d", cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_envExpansion(t *testing.T) {
	t.Setenv("TENANTRAG_TEST_PORT", "9191")
	t.Setenv("TENANTRAG_TEST_EMPTY", "")
	path := writeConfig(t, `
server:
  port: ${TENANTRAG_TEST_PORT}
  host: ${TENANTRAG_TEST_EMPTY:-0.0.0.0}
logging:
  level: ${TENANTRAG_TEST_UNSET:-warn}
store:
  data_dir: /tmp/tenantrag
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9191 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad backend", "store:\n  backend: redis\n", "store.backend"},
		{"negative chunk size", "chunking:\n  chunk_size: -1\n", "chunk_size"},
		{"negative overlap", "chunking:\n  chunk_overlap: -5\n", "chunk_overlap"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"default above max", "retrieval:\n  default_results: 50\n  max_results: 10\n", "default_results"},
		{"unknown scorer", "retrieval:\n  scorer: bm25\n", "retrieval.scorer"},
		{"not yaml", "server: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Store.Backend != "file" || cfg.Store.DataDir == "" {
		t.Errorf("store defaults: %+v", cfg.Store)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.OverlapOrDefault() != 200 {
		t.Errorf("chunking defaults: size=%d overlap=%d", cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Retrieval.DefaultResults != 5 || cfg.Retrieval.MaxResults != 100 || cfg.Retrieval.Scorer != "overlap" {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("watch extensions should default")
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without a watch directory")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	w := WatchConfig{}
	if !w.RecursiveOrDefault() {
		t.Error("unset recursive should default to true")
	}
	f := false
	w.Recursive = &f
	if w.RecursiveOrDefault() {
		t.Error("explicit false should be kept")
	}

	cfg := &Config{Watch: WatchConfig{Directory: "/inbox"}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when a directory is set")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := Default(filepath.Join(dir, "data"))
	cfg.Watch.Directory = filepath.Join(dir, "inbox")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Watch.Directory != cfg.Watch.Directory || loaded.Store.DataDir != cfg.Store.DataDir {
		t.Errorf("round trip mismatch: %+v vs %+v", loaded.Watch, cfg.Watch)
	}
	if loaded.Chunking.OverlapOrDefault() != 200 {
		t.Errorf("overlap after round trip = %d", loaded.Chunking.OverlapOrDefault())
	}
}
