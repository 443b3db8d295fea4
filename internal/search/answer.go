package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/pkg/utils"
)

const (
	// NoAnswer is returned when no chunk was retrieved.
	NoAnswer = "I don't have enough information to answer that question."

	answerPrefix   = "Based on the available information: "
	answerSuffix   = "... (Showing partial context as no LLM is available)"
	answerMaxChars = 300
	unknownTitle   = "Unknown"
)

// BuildContext labels each hit as "Document i:" and joins them with a blank line.
func BuildContext(hits []models.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("Document %d:\n%s", i+1, h.Text)
	}
	return strings.Join(parts, "\n\n")
}

// BuildAnswer returns an extractive answer: the first paragraph of the context cut to
// 300 characters, plus one source per hit. Without hits it returns NoAnswer and no sources.
func BuildAnswer(hits []models.Hit) *models.Answer {
	if len(hits) == 0 {
		return &models.Answer{Answer: NoAnswer, Sources: []models.Source{}}
	}
	first, _, _ := strings.Cut(BuildContext(hits), "\n\n")
	answer := answerPrefix + utils.Prefix(first, answerMaxChars) + answerSuffix

	sources := make([]models.Source, len(hits))
	for i, h := range hits {
		title := h.Metadata.GetString(models.MetaTitle)
		if title == "" {
			title = unknownTitle
		}
		chunkID, ok := h.Metadata[models.MetaChunkID]
		if !ok {
			chunkID = models.IntValue(int64(i))
		}
		sources[i] = models.Source{
			DocumentID: h.Metadata.GetString(models.MetaDocumentID),
			Title:      title,
			ChunkID:    chunkID,
		}
	}
	return &models.Answer{Answer: answer, Sources: sources}
}

// Snippet collapses whitespace in text and truncates it to maxLen characters.
func Snippet(text string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(text), " "), maxLen)
}
