package models

// Hit is one ranked chunk. Distance is 1 - Score.
type Hit struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
	Distance float64  `json:"distance"`
}

// QueryResult holds the selected chunks as parallel slices, best first.
type QueryResult struct {
	Documents []string   `json:"documents"`
	Metadatas []Metadata `json:"metadatas"`
	IDs       []string   `json:"ids"`
	Distances []float64  `json:"distances"`
}

// Len returns the number of selected chunks.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.IDs)
}

// Hits zips the parallel slices into Hit values.
func (r *QueryResult) Hits() []Hit {
	n := r.Len()
	if n == 0 {
		return []Hit{}
	}
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{
			ID:       r.IDs[i],
			Text:     r.Documents[i],
			Metadata: r.Metadatas[i],
			Score:    1 - r.Distances[i],
			Distance: r.Distances[i],
		}
	}
	return hits
}

// Source identifies the document chunk an answer drew from.
type Source struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkID    Value  `json:"chunk_id"`
}

// Answer is an extractive answer with its sources.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// RetrieveResponse is the response for a retrieval request.
type RetrieveResponse struct {
	Query     string `json:"query"`
	Tenant    string `json:"tenant_id"`
	Results   []Hit  `json:"results"`
	Total     int    `json:"total"`
	QueryTime int64  `json:"query_time_ms"`
}
