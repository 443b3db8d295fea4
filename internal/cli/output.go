// Package cli renders retrieval results, answers, and status for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetLen = 200

// ParseOutputFormat accepts "text", "json", or empty (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieveResults writes retrieval results to w in the given format.
// Unknown formats are treated as text.
func WriteRetrieveResults(w io.Writer, response *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for tenant %s in %dms\n\n", response.Total, response.Tenant, response.QueryTime)
	for i, hit := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Distance: %.4f\n", i+1, hit.Score, hit.Distance)
		fmt.Fprintf(w, "ID: %s\n", hit.ID)
		if doc := hit.Metadata.GetString(models.MetaDocumentID); doc != "" {
			fmt.Fprintf(w, "Document: %s\n", doc)
		}
		if title := hit.Metadata.GetString(models.MetaTitle); title != "" {
			fmt.Fprintf(w, "Title: %s\n", title)
		}
		fmt.Fprintf(w, "\n%s\n\n", search.Snippet(hit.Text, snippetLen))
	}
	return nil
}

// WriteAnswer writes an extractive answer and its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	if len(answer.Sources) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for _, src := range answer.Sources {
		fmt.Fprintf(w, "  - %s (%s, chunk %s)\n", src.Title, src.DocumentID, src.ChunkID.String())
	}
	return nil
}

// WriteStatus writes stored state per tenant.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Backend:    %s\n", st.Backend)
	fmt.Fprintf(w, "Data dir:   %s\n", st.Config.DataDir)
	fmt.Fprintf(w, "Chunking:   size %d, overlap %d\n", st.Config.ChunkSize, st.Config.ChunkOverlap)
	if st.Config.WatchDir != "" {
		fmt.Fprintf(w, "Watching:   %s\n", st.Config.WatchDir)
	}
	fmt.Fprintf(w, "Disk usage: %d bytes\n", st.DiskUsageBytes)
	fmt.Fprintf(w, "Tenants:    %d (%d chunks)\n", len(st.Tenants), st.TotalChunks)
	for _, t := range st.Tenants {
		fmt.Fprintf(w, "  %-24s %6d chunks %6d documents\n", t.TenantID, t.Chunks, t.Documents)
	}
	return nil
}
