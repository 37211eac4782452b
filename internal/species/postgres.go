package species

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/ebahrami/underthreat/models"
)

// PostgresStore is the row-oriented relational backend. Vector retrieval
// expects a pgvector column on doc_chunk; keyword retrieval works without.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

const pgSpeciesSelect = `
SELECT taxon_id, scientific_name, common_names,
       kingdom, phylum, class, "order", family, genus
FROM taxon
WHERE lower(scientific_name) = lower($1)
   OR EXISTS (SELECT 1 FROM unnest(common_names) cn WHERE lower(cn) = lower($1))
LIMIT 1`

// ResolveSpecies implements Store.
func (s *PostgresStore) ResolveSpecies(ctx context.Context, entity string) (*ResolvedTaxon, error) {
	var (
		t       ResolvedTaxon
		commons pq.StringArray
		ranks   [6]sql.NullString
	)
	err := s.db.QueryRowContext(ctx, pgSpeciesSelect, entity).Scan(
		&t.TaxonID, &t.ScientificName, &commons,
		&ranks[0], &ranks[1], &ranks[2], &ranks[3], &ranks[4], &ranks[5],
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrSpeciesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving species: %w", err)
	}
	t.CommonNames = []string(commons)
	t.Taxonomy = models.Taxonomy{
		Kingdom: ranks[0].String,
		Phylum:  ranks[1].String,
		Class:   ranks[2].String,
		Order:   ranks[3].String,
		Family:  ranks[4].String,
		Genus:   ranks[5].String,
	}
	return &t, nil
}

const pgAssessmentSelect = `
SELECT status, criteria, assessed_on, assessor, source, url, notes
FROM assessment WHERE taxon_id = $1
ORDER BY assessed_on DESC NULLS LAST
LIMIT 1`

// LatestAssessment implements Store.
func (s *PostgresStore) LatestAssessment(ctx context.Context, taxonID int64) (*models.Assessment, error) {
	var (
		a    models.Assessment
		cols [6]sql.NullString
	)
	err := s.db.QueryRowContext(ctx, pgAssessmentSelect, taxonID).Scan(
		&a.Status, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5],
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching assessment: %w", err)
	}
	a.Criteria = cols[0].String
	a.AssessedOn = cols[1].String
	a.Assessor = cols[2].String
	a.Source = cols[3].String
	a.URL = cols[4].String
	a.Notes = cols[5].String
	return &a, nil
}

const pgHabitatSelect = `
SELECT habitat_type, importance, source
FROM habitat WHERE taxon_id = $1
ORDER BY importance DESC NULLS LAST
LIMIT $2`

// Habitats implements Store.
func (s *PostgresStore) Habitats(ctx context.Context, taxonID int64, limit int) ([]models.Habitat, error) {
	rows, err := s.db.QueryContext(ctx, pgHabitatSelect, taxonID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching habitats: %w", err)
	}
	defer rows.Close()

	var out []models.Habitat
	for rows.Next() {
		var (
			h   models.Habitat
			imp sql.NullFloat64
			src sql.NullString
		)
		if err := rows.Scan(&h.Type, &imp, &src); err != nil {
			return nil, fmt.Errorf("scanning habitat: %w", err)
		}
		h.Importance = imp.Float64
		h.Source = src.String
		out = append(out, h)
	}
	return out, rows.Err()
}

const pgImagesSelect = `
SELECT id, title, url, thumbnail_url, width, height, format, license, attribution, source, captured_on
FROM image_asset WHERE taxon_id = $1
ORDER BY added_at DESC
LIMIT $2`

// Images implements Store.
func (s *PostgresStore) Images(ctx context.Context, taxonID int64, limit int) ([]models.ImageAsset, error) {
	rows, err := s.db.QueryContext(ctx, pgImagesSelect, taxonID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

const pgOccurrenceSummary = `
SELECT COUNT(*)::int,
       MIN(longitude), MIN(latitude), MAX(longitude), MAX(latitude)
FROM occurrence WHERE taxon_id = $1`

// OccurrenceSummary implements Store.
func (s *PostgresStore) OccurrenceSummary(ctx context.Context, taxonID int64) (int, *models.BoundingBox, error) {
	var (
		n    int
		lons [4]sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, pgOccurrenceSummary, taxonID).Scan(&n, &lons[0], &lons[1], &lons[2], &lons[3])
	if err != nil {
		return 0, nil, fmt.Errorf("aggregating occurrences: %w", err)
	}
	if n == 0 || !lons[0].Valid {
		return n, nil, nil
	}
	return n, &models.BoundingBox{
		MinLon: lons[0].Float64,
		MinLat: lons[1].Float64,
		MaxLon: lons[2].Float64,
		MaxLat: lons[3].Float64,
	}, nil
}

const pgVectorSearch = `
SELECT id, text, source_url, source_id, license,
       1 - (embedding <=> $2::vector) AS score
FROM doc_chunk
WHERE taxon_id = $1
ORDER BY embedding <-> $2::vector
LIMIT $3`

// SearchChunksByVector implements Store against a pgvector column.
func (s *PostgresStore) SearchChunksByVector(ctx context.Context, taxonID int64, vec []float32, k int) ([]models.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, pgVectorSearch, taxonID, vectorLiteral(vec), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	return scanSnippets(rows)
}

const pgKeywordSearch = `
SELECT id, text, source_url, source_id, license,
       CASE WHEN text ILIKE $2 THEN 0.9 ELSE 0.5 END AS score
FROM doc_chunk
WHERE taxon_id = $1 AND text ILIKE $2
ORDER BY id DESC
LIMIT $3`

// SearchChunksByKeyword implements Store.
func (s *PostgresStore) SearchChunksByKeyword(ctx context.Context, taxonID int64, query string, k int) ([]models.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, pgKeywordSearch, taxonID, keywordPattern(query), k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return scanSnippets(rows)
}

const pgInsertImage = `
INSERT INTO image_asset (taxon_id, title, url, thumbnail_url, width, height, format, license, attribution, source, captured_on)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

// InsertImageAsset implements Store.
func (s *PostgresStore) InsertImageAsset(ctx context.Context, p models.WritePayload) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, pgInsertImage,
		p.TaxonID, nullable(p.Title), p.URL, nullable(p.ThumbnailURL),
		nullableInt(p.Width), nullableInt(p.Height), nullable(p.Format),
		p.License, p.Attribution, nullable(p.Source), nullable(p.CapturedOn),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting image asset: %w", err)
	}
	return id, nil
}

// vectorLiteral renders a pgvector input literal: [0.1,0.2,...].
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// keywordPattern bounds the query text and wraps it for LIKE matching.
func keywordPattern(query string) string {
	if len(query) > 200 {
		query = query[:200]
	}
	if query == "" {
		return "%"
	}
	return "%" + query + "%"
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}

func scanImages(rows *sql.Rows) ([]models.ImageAsset, error) {
	var out []models.ImageAsset
	for rows.Next() {
		var (
			img  models.ImageAsset
			strs [7]sql.NullString
			dims [2]sql.NullInt64
		)
		if err := rows.Scan(&img.ID, &strs[0], &img.URL, &strs[1], &dims[0], &dims[1],
			&strs[2], &strs[3], &strs[4], &strs[5], &strs[6]); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		img.Title = strs[0].String
		img.ThumbnailURL = strs[1].String
		img.Format = strs[2].String
		img.License = strs[3].String
		img.Attribution = strs[4].String
		img.Source = strs[5].String
		img.CapturedOn = strs[6].String
		img.Width = int(dims[0].Int64)
		img.Height = int(dims[1].Int64)
		out = append(out, img)
	}
	return out, rows.Err()
}

func scanSnippets(rows *sql.Rows) ([]models.Snippet, error) {
	var out []models.Snippet
	for rows.Next() {
		var (
			sn   models.Snippet
			strs [3]sql.NullString
		)
		if err := rows.Scan(&sn.ID, &sn.Text, &strs[0], &strs[1], &strs[2], &sn.Score); err != nil {
			return nil, fmt.Errorf("scanning snippet: %w", err)
		}
		sn.SourceURL = strs[0].String
		sn.SourceID = strs[1].String
		sn.License = strs[2].String
		out = append(out, sn)
	}
	return out, rows.Err()
}
