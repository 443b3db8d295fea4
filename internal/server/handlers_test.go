package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/indexer"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/search"
	"github.com/hyperjump/tenantrag/internal/storage"
	"github.com/hyperjump/tenantrag/internal/store"
	"go.uber.org/zap"
)

type mockWatchService struct {
	root    string
	tenants []string
}

func (m *mockWatchService) Root() string      { return m.root }
func (m *mockWatchService) Tenants() []string { return m.tenants }

func newTestServer(t *testing.T, watch WatchService) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Chunking.ChunkSize = 40
	zero := 0
	cfg.Chunking.ChunkOverlap = &zero

	p, err := store.NewPersister(cfg.Store.Backend, cfg.Store.SnapshotDir(), cfg.Store.SQLitePath)
	if err != nil {
		t.Fatal(err)
	}
	registry := store.NewRegistry(p)
	t.Cleanup(func() { _ = registry.Close() })
	catalog, err := storage.NewSQLiteStorage(cfg.Store.CatalogPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(registry, chunker, indexer.WithCatalog(catalog))
	engine := search.NewEngine(registry, cfg.Retrieval)

	srv := NewServer(engine, idx, registry, cfg, zap.NewNop(), watch)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		r.Header.Set(TenantHeader, tenant)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["status"] != "ok" {
		t.Errorf("body: got %v", out)
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	_, h := newTestServer(t, nil)
	tests := []struct {
		name   string
		tenant string
	}{
		{"missing", ""},
		{"path separator", "a/b"},
		{"reserved", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/query", tt.tenant, map[string]any{"query": "x"})
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestIndexQueryAndChat(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{
		"id":       "doc1",
		"title":    "Alpha guide",
		"content":  "Alpha is the first letter.",
		"metadata": map[string]any{"lang": "en"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index status: got %d (%s)", w.Code, w.Body.String())
	}
	var idxOut indexResponse
	decodeBody(t, w, &idxOut)
	if idxOut.ID != "doc1" || idxOut.TenantID != "acme" || idxOut.Chunks != 1 {
		t.Errorf("index response: %+v", idxOut)
	}

	do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{
		"id": "doc2", "content": "Delta is another letter.",
	})

	w = do(t, h, http.MethodPost, "/api/v1/query", "acme", map[string]any{"query": "alpha", "max_results": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("query status: got %d (%s)", w.Code, w.Body.String())
	}
	var resp models.RetrieveResponse
	decodeBody(t, w, &resp)
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "doc1_chunk_0" {
		t.Errorf("query response: %+v", resp)
	}

	w = do(t, h, http.MethodPost, "/api/v1/chat", "acme", map[string]any{"query": "alpha", "max_results": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("chat status: got %d", w.Code)
	}
	var ans models.Answer
	decodeBody(t, w, &ans)
	if !strings.HasPrefix(ans.Answer, "Based on the available information: ") {
		t.Errorf("answer: %q", ans.Answer)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].DocumentID != "doc1" || ans.Sources[0].Title != "Alpha guide" {
		t.Errorf("sources: %+v", ans.Sources)
	}

	// Another tenant sees nothing.
	w = do(t, h, http.MethodPost, "/api/v1/query", "globex", map[string]any{"query": "alpha"})
	var other models.RetrieveResponse
	decodeBody(t, w, &other)
	if other.Total != 0 {
		t.Errorf("tenant isolation: globex got %+v", other.Results)
	}
}

func TestQuery_badRequests(t *testing.T) {
	_, h := newTestServer(t, nil)
	tests := []struct {
		name string
		body any
	}{
		{"max_results above limit", map[string]any{"query": "x", "max_results": 1000}},
		{"negative max_results", map[string]any{"query": "x", "max_results": -1}},
		{"not json", "{"},
		{"non primitive filter", `{"query":"x","metadata_filter":{"a":[1]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/query", "acme", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestIndexDocument_requiresContent(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{"id": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestDocumentCatalogEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{
			"id": fmt.Sprintf("doc%d", i), "filename": fmt.Sprintf("file%d.txt", i), "content": "some text",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("index %d: got %d", i, w.Code)
		}
	}

	w := do(t, h, http.MethodGet, "/api/v1/documents?limit=2", "acme", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var list listResponse
	decodeBody(t, w, &list)
	if list.Total != 3 || len(list.Documents) != 2 || list.Limit != 2 {
		t.Errorf("list: total=%d docs=%d limit=%d", list.Total, len(list.Documents), list.Limit)
	}

	w = do(t, h, http.MethodGet, "/api/v1/documents?offset=-1", "acme", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative offset: got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/documents/doc1", "acme", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.ID != "doc1" || doc.Title != "file1" || doc.TenantID != "acme" {
		t.Errorf("document: %+v", doc)
	}

	w = do(t, h, http.MethodGet, "/api/v1/documents/doc1", "globex", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get: got %d, want 404", w.Code)
	}

	for i := 0; i < 2; i++ {
		w = do(t, h, http.MethodDelete, "/api/v1/documents/doc1", "acme", nil)
		if w.Code != http.StatusOK {
			t.Errorf("delete #%d: got %d", i+1, w.Code)
		}
	}
	w = do(t, h, http.MethodGet, "/api/v1/documents/doc1", "acme", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestUpdateDocument(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{
		"id": "handbook", "title": "Handbook", "content": "Vacation policy: twenty days.",
		"metadata": map[string]any{"team": "hr"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPut, "/api/v1/documents/handbook", "acme", map[string]any{"title": "Employee Handbook"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	var updated struct {
		ID       string          `json:"id"`
		Title    string          `json:"title"`
		Content  string          `json:"content"`
		Metadata models.Metadata `json:"metadata"`
		Chunks   int             `json:"chunks"`
	}
	decodeBody(t, w, &updated)
	if updated.ID != "handbook" || updated.Title != "Employee Handbook" || updated.Chunks != 1 {
		t.Errorf("update response = %+v", updated)
	}
	if updated.Content != "Vacation policy: twenty days." || updated.Metadata.GetString("team") != "hr" {
		t.Errorf("unset fields should be kept: %+v", updated)
	}

	w = do(t, h, http.MethodPost, "/api/v1/chat", "acme", map[string]any{"query": "vacation"})
	var answer models.Answer
	decodeBody(t, w, &answer)
	if len(answer.Sources) != 1 || answer.Sources[0].Title != "Employee Handbook" {
		t.Errorf("chat should cite the new title: %+v", answer.Sources)
	}

	tests := []struct {
		name   string
		path   string
		tenant string
		body   any
		want   int
	}{
		{"unknown document", "/api/v1/documents/missing", "acme", map[string]any{"title": "x"}, http.StatusNotFound},
		{"other tenant", "/api/v1/documents/handbook", "globex", map[string]any{"title": "x"}, http.StatusNotFound},
		{"bad body", "/api/v1/documents/handbook", "acme", "not an object", http.StatusBadRequest},
		{"bad metadata", "/api/v1/documents/handbook", "acme", map[string]any{"metadata": map[string]any{"k": []int{1}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPut, tt.path, tt.tenant, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDeleteTenantAndStatus(t *testing.T) {
	_, h := newTestServer(t, nil)
	do(t, h, http.MethodPost, "/api/v1/documents", "acme", map[string]any{"id": "a", "content": "alpha beta"})
	do(t, h, http.MethodPost, "/api/v1/documents", "globex", map[string]any{"id": "b", "content": "gamma"})

	w := do(t, h, http.MethodGet, "/api/v1/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st models.Status
	decodeBody(t, w, &st)
	if st.Backend != store.BackendFile || len(st.Tenants) != 2 || st.TotalChunks != 2 {
		t.Errorf("status: %+v", st)
	}
	if st.Tenants[0].TenantID != "acme" || st.Tenants[0].Documents != 1 || st.Tenants[0].DiskUsageBytes == 0 {
		t.Errorf("acme status: %+v", st.Tenants[0])
	}

	w = do(t, h, http.MethodDelete, "/api/v1/tenant", "acme", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete tenant: got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/status", "", nil)
	st = models.Status{}
	decodeBody(t, w, &st)
	if len(st.Tenants) != 1 || st.Tenants[0].TenantID != "globex" {
		t.Errorf("status after delete: %+v", st.Tenants)
	}

	w = do(t, h, http.MethodPost, "/api/v1/query", "acme", map[string]any{"query": "alpha"})
	var resp models.RetrieveResponse
	decodeBody(t, w, &resp)
	if resp.Total != 0 {
		t.Errorf("deleted tenant still returns %d hits", resp.Total)
	}
}

func TestHandleWatch(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/api/v1/watch", "", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("disabled: got %d, want 501", w.Code)
	}

	_, h = newTestServer(t, &mockWatchService{root: "/inbox", tenants: []string{"acme"}})
	w = do(t, h, http.MethodGet, "/api/v1/watch", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enabled: got %d", w.Code)
	}
	var out struct {
		Directory string   `json:"directory"`
		Tenants   []string `json:"tenants"`
	}
	decodeBody(t, w, &out)
	if out.Directory != "/inbox" || len(out.Tenants) != 1 || out.Tenants[0] != "acme" {
		t.Errorf("watch: %+v", out)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	do(t, h, http.MethodGet, "/health", "", nil)
	w := do(t, h, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tenantrag_http_requests_total") {
		t.Error("metrics output missing http request counter")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", store.ErrMalformedInput), http.StatusBadRequest},
		{models.ErrInvalidValue, http.StatusBadRequest},
		{fmt.Errorf("get: %w", storage.ErrNotFound), http.StatusNotFound},
		{store.ErrStoreClosed, http.StatusConflict},
		{indexer.ErrNoCatalog, http.StatusNotImplemented},
		{fmt.Errorf("%w: disk full", store.ErrPersistence), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
