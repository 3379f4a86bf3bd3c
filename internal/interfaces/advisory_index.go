package interfaces

import (
	"context"

	"github.com/ternarybob/vulnaq/internal/models"
)

// IndexSearchResult is one ranked retrieval group: an advisory plus the
// distinct section indices that matched, in hit order.
type IndexSearchResult struct {
	Advisory       *models.Advisory
	SectionIndices []int
}

// AdvisoryIndex is the semantic search capability over advisory chunks.
type AdvisoryIndex interface {
	// Store chunks, embeds and persists every advisory in the corpus.
	// Must be called before Search.
	Store(ctx context.Context) error

	// Search returns up to topK advisory groups ranked by relevance.
	// Returns an error if the index has never been built.
	Search(ctx context.Context, query string, topK int) ([]IndexSearchResult, error)
}
