package models

// TenantStatus summarizes one tenant's stored state.
type TenantStatus struct {
	TenantID       string `json:"tenant_id"`
	Chunks         int    `json:"chunks"`
	Documents      int64  `json:"documents"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
}

// StatusConfig echoes the settings that shape stored state.
type StatusConfig struct {
	DataDir      string `json:"data_dir"`
	CatalogPath  string `json:"catalog_path,omitempty"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	WatchDir     string `json:"watch_directory,omitempty"`
}

// Status is the response for a status request.
type Status struct {
	Backend        string         `json:"backend"`
	Tenants        []TenantStatus `json:"tenants"`
	TotalChunks    int            `json:"total_chunks"`
	DiskUsageBytes int64          `json:"disk_usage_bytes"`
	Config         StatusConfig   `json:"config"`
}
