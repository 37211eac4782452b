package species

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ebahrami/underthreat/models"
)

// SQLiteStore is the embedded backend. It has no vector index; semantic
// retrieval degrades to keyword search.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database file and its schema.
// Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) createSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS taxon (
	taxon_id        INTEGER PRIMARY KEY,
	scientific_name TEXT NOT NULL,
	common_names    TEXT NOT NULL DEFAULT '[]',
	kingdom         TEXT,
	phylum          TEXT,
	class           TEXT,
	"order"         TEXT,
	family          TEXT,
	genus           TEXT
);
CREATE TABLE IF NOT EXISTS assessment (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon_id    INTEGER NOT NULL REFERENCES taxon(taxon_id),
	status      TEXT NOT NULL,
	criteria    TEXT,
	assessed_on TEXT,
	assessor    TEXT,
	source      TEXT,
	url         TEXT,
	notes       TEXT
);
CREATE TABLE IF NOT EXISTS habitat (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon_id     INTEGER NOT NULL REFERENCES taxon(taxon_id),
	habitat_type TEXT NOT NULL,
	importance   REAL,
	source       TEXT
);
CREATE TABLE IF NOT EXISTS image_asset (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon_id      INTEGER NOT NULL REFERENCES taxon(taxon_id),
	title         TEXT,
	url           TEXT NOT NULL,
	thumbnail_url TEXT,
	width         INTEGER,
	height        INTEGER,
	format        TEXT,
	license       TEXT NOT NULL,
	attribution   TEXT NOT NULL,
	source        TEXT,
	captured_on   TEXT,
	added_at      TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS doc_chunk (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon_id   INTEGER NOT NULL REFERENCES taxon(taxon_id),
	text       TEXT NOT NULL,
	source_url TEXT,
	source_id  TEXT,
	license    TEXT
);
CREATE TABLE IF NOT EXISTS occurrence (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon_id  INTEGER NOT NULL REFERENCES taxon(taxon_id),
	longitude REAL NOT NULL,
	latitude  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessment_taxon ON assessment(taxon_id);
CREATE INDEX IF NOT EXISTS idx_habitat_taxon ON habitat(taxon_id);
CREATE INDEX IF NOT EXISTS idx_image_taxon ON image_asset(taxon_id);
CREATE INDEX IF NOT EXISTS idx_chunk_taxon ON doc_chunk(taxon_id);
CREATE INDEX IF NOT EXISTS idx_occurrence_taxon ON occurrence(taxon_id);
`
	_, err := s.db.Exec(schema)
	return err
}

const liteSpeciesSelect = `
SELECT taxon_id, scientific_name, common_names,
       kingdom, phylum, class, "order", family, genus
FROM taxon
WHERE lower(scientific_name) = lower(?1)
   OR EXISTS (SELECT 1 FROM json_each(taxon.common_names) WHERE lower(json_each.value) = lower(?1))
LIMIT 1`

// ResolveSpecies implements Store.
func (s *SQLiteStore) ResolveSpecies(ctx context.Context, entity string) (*ResolvedTaxon, error) {
	var (
		t       ResolvedTaxon
		commons string
		ranks   [6]sql.NullString
	)
	err := s.db.QueryRowContext(ctx, liteSpeciesSelect, entity).Scan(
		&t.TaxonID, &t.ScientificName, &commons,
		&ranks[0], &ranks[1], &ranks[2], &ranks[3], &ranks[4], &ranks[5],
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrSpeciesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving species: %w", err)
	}
	if err := json.Unmarshal([]byte(commons), &t.CommonNames); err != nil {
		return nil, fmt.Errorf("decoding common names: %w", err)
	}
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

const liteAssessmentSelect = `
SELECT status, criteria, assessed_on, assessor, source, url, notes
FROM assessment WHERE taxon_id = ?
ORDER BY assessed_on DESC NULLS LAST
LIMIT 1`

// LatestAssessment implements Store.
func (s *SQLiteStore) LatestAssessment(ctx context.Context, taxonID int64) (*models.Assessment, error) {
	var (
		a    models.Assessment
		cols [6]sql.NullString
	)
	err := s.db.QueryRowContext(ctx, liteAssessmentSelect, taxonID).Scan(
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

const liteHabitatSelect = `
SELECT habitat_type, importance, source
FROM habitat WHERE taxon_id = ?
ORDER BY importance DESC NULLS LAST
LIMIT ?`

// Habitats implements Store.
func (s *SQLiteStore) Habitats(ctx context.Context, taxonID int64, limit int) ([]models.Habitat, error) {
	rows, err := s.db.QueryContext(ctx, liteHabitatSelect, taxonID, limit)
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

const liteImagesSelect = `
SELECT id, title, url, thumbnail_url, width, height, format, license, attribution, source, captured_on
FROM image_asset WHERE taxon_id = ?
ORDER BY added_at DESC, id DESC
LIMIT ?`

// Images implements Store.
func (s *SQLiteStore) Images(ctx context.Context, taxonID int64, limit int) ([]models.ImageAsset, error) {
	rows, err := s.db.QueryContext(ctx, liteImagesSelect, taxonID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

const liteOccurrenceSummary = `
SELECT count(*), min(longitude), min(latitude), max(longitude), max(latitude)
FROM occurrence WHERE taxon_id = ?`

// OccurrenceSummary implements Store.
func (s *SQLiteStore) OccurrenceSummary(ctx context.Context, taxonID int64) (int, *models.BoundingBox, error) {
	var (
		n    int
		exts [4]sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, liteOccurrenceSummary, taxonID).Scan(&n, &exts[0], &exts[1], &exts[2], &exts[3])
	if err != nil {
		return 0, nil, fmt.Errorf("aggregating occurrences: %w", err)
	}
	if n == 0 || !exts[0].Valid {
		return n, nil, nil
	}
	return n, &models.BoundingBox{
		MinLon: exts[0].Float64,
		MinLat: exts[1].Float64,
		MaxLon: exts[2].Float64,
		MaxLat: exts[3].Float64,
	}, nil
}

// SearchChunksByVector implements Store. The embedded backend has no vector
// index.
func (s *SQLiteStore) SearchChunksByVector(ctx context.Context, taxonID int64, vec []float32, k int) ([]models.Snippet, error) {
	return nil, ErrVectorSearchUnavailable
}

const liteKeywordSearch = `
SELECT id, text, source_url, source_id, license,
       CASE WHEN text LIKE ?2 THEN 0.9 ELSE 0.5 END AS score
FROM doc_chunk
WHERE taxon_id = ?1 AND text LIKE ?2
ORDER BY id DESC
LIMIT ?3`

// SearchChunksByKeyword implements Store.
func (s *SQLiteStore) SearchChunksByKeyword(ctx context.Context, taxonID int64, query string, k int) ([]models.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, liteKeywordSearch, taxonID, keywordPattern(query), k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return scanSnippets(rows)
}

const liteInsertImage = `
INSERT INTO image_asset (taxon_id, title, url, thumbnail_url, width, height, format, license, attribution, source, captured_on)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertImageAsset implements Store.
func (s *SQLiteStore) InsertImageAsset(ctx context.Context, p models.WritePayload) (int64, error) {
	res, err := s.db.ExecContext(ctx, liteInsertImage,
		p.TaxonID, nullable(p.Title), p.URL, nullable(p.ThumbnailURL),
		nullableInt(p.Width), nullableInt(p.Height), nullable(p.Format),
		p.License, p.Attribution, nullable(p.Source), nullable(p.CapturedOn),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting image asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}
