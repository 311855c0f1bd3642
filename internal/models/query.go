package models

import "fmt"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ReviewFilter selects reviews for listing. Nil/empty fields do not filter.
type ReviewFilter struct {
	CompanyID  *int64    `json:"company_id,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Department string    `json:"department,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Validate checks the sentiment filter and normalizes the limit.
func (f *ReviewFilter) Validate() error {
	if f.Sentiment != "" && !f.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment filter: %q", f.Sentiment)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return nil
}

// SearchQuery is a full-text search over indexed reviews.
type SearchQuery struct {
	Query     string    `json:"query"`
	Size      int       `json:"size,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise bounds size to [1, maxSize].
func (q *SearchQuery) Validate(defaultSize, maxSize int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Sentiment != "" && !q.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment filter: %q", q.Sentiment)
	}
	if q.Size <= 0 {
		q.Size = defaultSize
	}
	if maxSize > 0 && q.Size > maxSize {
		q.Size = maxSize
	}
	return nil
}
