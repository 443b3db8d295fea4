package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/indexer"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *indexer.Indexer) {
	t.Helper()
	p, err := store.NewFilePersister(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	registry := store.NewRegistry(p)
	chunker, err := indexer.NewChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.RetrievalConfig{DefaultResults: 2, MaxResults: 3}
	return NewEngine(registry, cfg), indexer.NewIndexer(registry, chunker)
}

func TestEngine_Retrieve(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(t)

	if _, err := idx.Ingest(ctx, "acme", "doc1", "Alpha beta gamma.\n\nDelta epsilon.", nil); err != nil {
		t.Fatal(err)
	}
	resp, err := engine.Retrieve(ctx, "acme", &models.RetrieveRequest{Query: "alpha gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Tenant != "acme" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	hit := resp.Results[0]
	if hit.ID != "doc1_chunk_0" || hit.Score != 1.0 || hit.Distance != 0 {
		t.Errorf("unexpected hit: %+v", hit)
	}
}

func TestEngine_RetrieveDefaultsAndCaps(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if _, err := idx.Ingest(ctx, "acme", id, "common words "+id, nil); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 2},
		{"explicit", 1, 1},
		{"at limit", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := engine.Retrieve(ctx, "acme", &models.RetrieveRequest{Query: "common", MaxResults: tt.limit})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Total != tt.want {
				t.Errorf("got %d results, want %d", resp.Total, tt.want)
			}
		})
	}

	_, err := engine.Retrieve(ctx, "acme", &models.RetrieveRequest{Query: "common", MaxResults: 50})
	if !errors.Is(err, store.ErrMalformedInput) || !strings.Contains(err.Error(), "exceeds the limit of 3") {
		t.Errorf("max_results above the limit should be rejected, got %v", err)
	}
}

func TestEngine_RetrieveEmptyQueryKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(t)
	for _, id := range []string{"first", "second", "third"} {
		if _, err := idx.Ingest(ctx, "acme", id, "text of "+id, nil); err != nil {
			t.Fatal(err)
		}
	}
	for _, q := range []string{"", "   ", "?!"} {
		resp, err := engine.Retrieve(ctx, "acme", &models.RetrieveRequest{Query: q, MaxResults: 3})
		if err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		var ids []string
		for _, h := range resp.Results {
			ids = append(ids, h.ID)
			if h.Score != 0 || h.Distance != 1 {
				t.Errorf("query %q: hit %s scored %v", q, h.ID, h.Score)
			}
		}
		want := []string{"first_chunk_0", "second_chunk_0", "third_chunk_0"}
		if strings.Join(ids, ",") != strings.Join(want, ",") {
			t.Errorf("query %q: ids = %v, want %v", q, ids, want)
		}
	}
}

func TestEngine_RetrieveMalformed(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	for _, req := range []*models.RetrieveRequest{nil, {Query: "x", MaxResults: -1}, {Query: "x", MaxResults: 4}} {
		if _, err := engine.Retrieve(ctx, "acme", req); !errors.Is(err, store.ErrMalformedInput) {
			t.Errorf("request %+v: expected ErrMalformedInput, got %v", req, err)
		}
	}
	if _, err := engine.Retrieve(ctx, "a/b", &models.RetrieveRequest{Query: "x"}); !errors.Is(err, store.ErrMalformedInput) {
		t.Errorf("bad tenant: %v", err)
	}
}

func TestEngine_RetrieveFilter(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(t)
	_, _ = idx.Ingest(ctx, "acme", "doc1", "shared words", nil)
	_, _ = idx.Ingest(ctx, "acme", "doc2", "shared words too", nil)

	resp, err := engine.Retrieve(ctx, "acme", &models.RetrieveRequest{
		Query:          "shared",
		MetadataFilter: models.Metadata{models.MetaDocumentID: models.StringValue("doc2")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].ID != "doc2_chunk_0" {
		t.Errorf("filter returned %+v", resp.Results)
	}
}

func TestEngine_Answer(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(t)

	ans, err := engine.Answer(ctx, "acme", &models.RetrieveRequest{Query: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != NoAnswer || len(ans.Sources) != 0 {
		t.Errorf("empty tenant answer = %+v", ans)
	}

	base := models.Metadata{models.MetaTitle: models.StringValue("Greek letters")}
	if _, err := idx.Ingest(ctx, "acme", "doc1", "Alpha beta gamma.\n\nDelta epsilon.", base); err != nil {
		t.Fatal(err)
	}
	ans, err = engine.Answer(ctx, "acme", &models.RetrieveRequest{Query: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "Based on the available information: Document 1:\nAlpha beta gamma.... (Showing partial context as no LLM is available)" {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("sources = %+v", ans.Sources)
	}
	src := ans.Sources[0]
	if src.DocumentID != "doc1" || src.Title != "Greek letters" || !src.ChunkID.Equal(models.IntValue(0)) {
		t.Errorf("source = %+v", src)
	}
}

func TestBuildAnswer(t *testing.T) {
	long := strings.Repeat("x", 400)
	ans := BuildAnswer([]models.Hit{
		{ID: "a", Text: long, Metadata: models.Metadata{}},
		{ID: "b", Text: "second", Metadata: models.Metadata{models.MetaDocumentID: models.StringValue("d")}},
	})
	want := answerPrefix + ("Document 1:\n" + long)[:answerMaxChars] + answerSuffix
	if ans.Answer != want {
		t.Errorf("answer length %d, want %d", len(ans.Answer), len(want))
	}
	if ans.Sources[0].Title != "Unknown" || !ans.Sources[0].ChunkID.Equal(models.IntValue(0)) {
		t.Errorf("default source = %+v", ans.Sources[0])
	}
	if !ans.Sources[1].ChunkID.Equal(models.IntValue(1)) || ans.Sources[1].DocumentID != "d" {
		t.Errorf("second source = %+v", ans.Sources[1])
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Snippet("long\n\ntext   here", 9); got != "long text..." {
		t.Errorf("got %q", got)
	}
	if got := Snippet("x", 0); got != "x" {
		t.Errorf("maxLen 0 should return as-is, got %q", got)
	}
}
