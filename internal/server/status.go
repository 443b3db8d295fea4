package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/storage"
	"github.com/hyperjump/tenantrag/internal/store"
)

// CollectStatus reports every tenant with persisted or cached state: chunk counts from the
// registry, document counts from catalog (may be nil), and disk usage.
func CollectStatus(ctx context.Context, registry *store.Registry, catalog storage.Storage, cfg *config.Config) (*models.Status, error) {
	persisted, err := store.ListTenants(ctx, registry.Persister())
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	seen := make(map[string]struct{})
	var tenants []string
	for _, id := range append(persisted, registry.Tenants()...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)

	var perTenantDisk map[string]int64
	if registry.Persister().Kind() == store.BackendFile {
		perTenantDisk, err = storage.TenantDiskUsage(cfg.Store.SnapshotDir())
		if err != nil {
			return nil, fmt.Errorf("disk usage: %w", err)
		}
	}

	st := &models.Status{
		Backend: registry.Persister().Kind(),
		Tenants: make([]models.TenantStatus, 0, len(tenants)),
		Config: models.StatusConfig{
			DataDir:      cfg.Store.DataDir,
			CatalogPath:  cfg.Store.CatalogPath,
			ChunkSize:    cfg.Chunking.ChunkSize,
			ChunkOverlap: cfg.Chunking.OverlapOrDefault(),
			WatchDir:     cfg.Watch.Directory,
		},
	}
	for _, id := range tenants {
		s, err := registry.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		ts := models.TenantStatus{TenantID: id, Chunks: s.Len(), DiskUsageBytes: perTenantDisk[id]}
		if catalog != nil {
			n, err := catalog.CountDocuments(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("count documents: %w", err)
			}
			ts.Documents = n
		}
		st.TotalChunks += ts.Chunks
		st.Tenants = append(st.Tenants, ts)
	}

	paths := []string{cfg.Store.SnapshotDir(), cfg.Store.CatalogPath}
	if st.Backend == store.BackendSQLite {
		paths = append(paths, cfg.Store.SQLitePath)
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = n
	}
	return st, nil
}
