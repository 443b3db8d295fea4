package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFileName is the per-tenant snapshot file written by FilePersister.
const SnapshotFileName = "vector_store.json"

// FilePersister stores each tenant snapshot as JSON at <root>/<tenant>/vector_store.json.
type FilePersister struct {
	root string
}

// NewFilePersister creates root if needed and returns a persister writing under it.
func NewFilePersister(root string) (*FilePersister, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: snapshot root is empty", ErrMalformedInput)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}
	return &FilePersister{root: root}, nil
}

// Kind returns "file".
func (p *FilePersister) Kind() string { return BackendFile }

// Root returns the directory holding tenant snapshot directories.
func (p *FilePersister) Root() string { return p.root }

// Path returns the snapshot path for tenantID.
func (p *FilePersister) Path(tenantID string) string {
	return filepath.Join(p.root, tenantID, SnapshotFileName)
}

// Load reads and decodes the tenant snapshot.
func (p *FilePersister) Load(_ context.Context, tenantID string) (*Snapshot, error) {
	data, err := os.ReadFile(p.Path(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically: temp file in the same directory, fsync, rename.
func (p *FilePersister) Save(ctx context.Context, tenantID string, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snap.normalized())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dest := p.Path(tenantID)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create tenant directory: %w", err)
	}
	return writeFileAtomic(dest, data, 0644)
}

// Delete removes the tenant directory and everything in it.
func (p *FilePersister) Delete(_ context.Context, tenantID string) error {
	if err := os.RemoveAll(filepath.Join(p.root, tenantID)); err != nil {
		return fmt.Errorf("remove tenant directory: %w", err)
	}
	return nil
}

// Close is a no-op.
func (p *FilePersister) Close() error { return nil }

func writeFileAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not all platforms support it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
