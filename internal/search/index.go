// Package search projects committed reviews into a full-text index.
package search

import (
	"context"

	"github.com/hyperjump/reviewdesk/internal/models"
)

// Index is the searchable projection of reviews. Documents are keyed by review id, so Upsert of
// the same id overwrites. Delete of a missing id succeeds.
type Index interface {
	Upsert(ctx context.Context, reviewID int64, doc *models.ReviewDocument) error
	Search(ctx context.Context, q models.SearchQuery) ([]*models.SearchHit, error)
	Delete(ctx context.Context, reviewID int64) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}
