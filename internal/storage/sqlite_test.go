package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tenantrag/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "doc1",
		TenantID: "acme",
		Title:    "Title",
		Content:  "Content",
		FilePath: "/inbox/acme/files/doc1.txt",
		Metadata: models.Metadata{"k": models.StringValue("v"), "n": models.IntValue(3)},
	}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	created := doc.CreatedAt

	got, err := store.GetDocument(ctx, "acme", "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title" || got.Content != "Content" || got.FilePath != doc.FilePath {
		t.Errorf("got %+v", got)
	}
	if got.Metadata.GetString("k") != "v" || got.Metadata["n"].Kind() != models.KindInt {
		t.Errorf("metadata not preserved: %v", got.Metadata.Map())
	}

	doc.Title = "Updated"
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "acme", "doc1")
	if got.Title != "Updated" {
		t.Errorf("expected Updated, got %s", got.Title)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on upsert: %v -> %v", created, got.CreatedAt)
	}

	list, err := store.ListDocuments(ctx, "acme", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.DeleteDocument(ctx, "acme", "doc1"); err != nil {
		t.Fatal(err)
	}
	_, err = store.GetDocument(ctx, "acme", "doc1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "acme", "doc1"); err != nil {
		t.Errorf("deleting a missing document should not fail: %v", err)
	}
}

func TestSQLiteStorage_TenantScope(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, tenant := range []string{"a", "b"} {
		for _, id := range []string{"d1", "d2"} {
			doc := &models.Document{ID: id, TenantID: tenant, Title: tenant + id, Content: "c"}
			if err := store.UpsertDocument(ctx, doc); err != nil {
				t.Fatal(err)
			}
		}
	}

	got, err := store.GetDocument(ctx, "b", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "bd1" {
		t.Errorf("tenant b saw %q", got.Title)
	}

	n, err := store.DeleteTenant(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteTenant removed %d, want 2", n)
	}
	if c, _ := store.CountDocuments(ctx, "a"); c != 0 {
		t.Errorf("tenant a still has %d documents", c)
	}
	if c, _ := store.CountDocuments(ctx, "b"); c != 2 {
		t.Errorf("tenant b has %d documents, want 2", c)
	}
}

func TestSQLiteStorage_ListPaging(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	empty, err := store.ListDocuments(ctx, "acme", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil list, got %v", empty)
	}

	for _, id := range []string{"a", "b", "c"} {
		_ = store.UpsertDocument(ctx, &models.Document{ID: id, TenantID: "acme", Content: "c"})
	}
	page, err := store.ListDocuments(ctx, "acme", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Errorf("expected 1 doc on page, got %d", len(page))
	}
	all, _ := store.ListDocuments(ctx, "acme", 0, 100)
	if len(all) != 3 {
		t.Errorf("expected 3 docs, got %d", len(all))
	}
}
