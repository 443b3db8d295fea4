package models

import "fmt"

// RetrieveRequest is a ranked-retrieval request scoped to one tenant.
type RetrieveRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	MetadataFilter Metadata `json:"metadata_filter,omitempty"`
}

// Validate rejects a negative result count or one above maxResults (when maxResults is
// positive), and applies defaultResults when MaxResults is unset. An empty query is allowed:
// every chunk then scores 0 and comes back in insertion order.
func (q *RetrieveRequest) Validate(defaultResults, maxResults int) error {
	if q.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative, got %d", q.MaxResults)
	}
	if q.MaxResults == 0 {
		q.MaxResults = defaultResults
	}
	if maxResults > 0 && q.MaxResults > maxResults {
		return fmt.Errorf("max_results %d exceeds the limit of %d", q.MaxResults, maxResults)
	}
	return nil
}
