// Package species implements the structured-data stage and the store
// contract it reads from, with relational (Postgres) and embedded (SQLite)
// backends behind the same interface.
package species

import (
	"context"
	"errors"

	"github.com/ebahrami/underthreat/models"
)

// ErrVectorSearchUnavailable signals a backend without a vector index; the
// stage falls back to keyword retrieval silently.
var ErrVectorSearchUnavailable = errors.New("vector search unavailable")

// ResolvedTaxon is the canonical identity of one matched species.
type ResolvedTaxon struct {
	TaxonID        int64
	ScientificName string
	CommonNames    []string
	Taxonomy       models.Taxonomy
}

// Store is the logical data-store contract. Both backends implement it;
// backend selection is a configuration concern.
type Store interface {
	// ResolveSpecies matches one entity by case-insensitive scientific name
	// or membership in the common-name set. Returns models.ErrSpeciesNotFound
	// when nothing matches.
	ResolveSpecies(ctx context.Context, entity string) (*ResolvedTaxon, error)

	// LatestAssessment returns the most recent assessment (null dates sort
	// last), or nil when the taxon has none.
	LatestAssessment(ctx context.Context, taxonID int64) (*models.Assessment, error)

	// Habitats returns up to limit habitat records by descending importance,
	// nulls last.
	Habitats(ctx context.Context, taxonID int64, limit int) ([]models.Habitat, error)

	// Images returns up to limit image assets, most recently added first.
	Images(ctx context.Context, taxonID int64, limit int) ([]models.ImageAsset, error)

	// OccurrenceSummary aggregates point coordinates into a count and
	// bounding box. Zero count means no occurrences.
	OccurrenceSummary(ctx context.Context, taxonID int64) (int, *models.BoundingBox, error)

	// SearchChunksByVector runs similarity search over the taxon's text
	// chunks. May return ErrVectorSearchUnavailable.
	SearchChunksByVector(ctx context.Context, taxonID int64, vec []float32, k int) ([]models.Snippet, error)

	// SearchChunksByKeyword runs a substring match over the same chunks.
	SearchChunksByKeyword(ctx context.Context, taxonID int64, query string, k int) ([]models.Snippet, error)

	// InsertImageAsset persists a new image asset and returns its id.
	InsertImageAsset(ctx context.Context, payload models.WritePayload) (int64, error)

	Close() error
}
