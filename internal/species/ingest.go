package species

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ebahrami/underthreat/models"
)

// FixtureTables lists the JSON files IngestFixtures looks for, in load
// order (taxon first so foreign keys resolve).
var FixtureTables = []string{"taxon", "assessment", "habitat", "image_asset", "doc_chunk", "occurrence"}

type taxonFixture struct {
	TaxonID        int64    `json:"taxon_id"`
	ScientificName string   `json:"scientific_name"`
	CommonNames    []string `json:"common_names"`
	Kingdom        string   `json:"kingdom"`
	Phylum         string   `json:"phylum"`
	Class          string   `json:"class"`
	Order          string   `json:"order"`
	Family         string   `json:"family"`
	Genus          string   `json:"genus"`
}

type assessmentFixture struct {
	TaxonID int64 `json:"taxon_id"`
	models.Assessment
}

type habitatFixture struct {
	TaxonID int64 `json:"taxon_id"`
	models.Habitat
}

type chunkFixture struct {
	TaxonID   int64  `json:"taxon_id"`
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	SourceID  string `json:"source_id"`
	License   string `json:"license"`
}

type occurrenceFixture struct {
	TaxonID   int64   `json:"taxon_id"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// IngestFixtures seeds the embedded store from <dir>/<table>.json files.
// Missing files are skipped; counts per loaded table are returned.
func (s *SQLiteStore) IngestFixtures(ctx context.Context, dir string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range FixtureTables {
		path := filepath.Join(dir, table+".json")
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return counts, fmt.Errorf("reading %s: %w", path, err)
		}
		n, err := s.ingestTable(ctx, table, raw)
		if err != nil {
			return counts, fmt.Errorf("loading %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *SQLiteStore) ingestTable(ctx context.Context, table string, raw []byte) (int, error) {
	switch table {
	case "taxon":
		var recs []taxonFixture
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			commons, err := json.Marshal(r.CommonNames)
			if err != nil {
				return 0, err
			}
			if string(commons) == "null" {
				commons = []byte("[]")
			}
			_, err = s.db.ExecContext(ctx,
				`INSERT OR REPLACE INTO taxon (taxon_id, scientific_name, common_names, kingdom, phylum, class, "order", family, genus)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.TaxonID, r.ScientificName, string(commons),
				nullable(r.Kingdom), nullable(r.Phylum), nullable(r.Class),
				nullable(r.Order), nullable(r.Family), nullable(r.Genus))
			if err != nil {
				return 0, err
			}
		}
		return len(recs), nil

	case "assessment":
		var recs []assessmentFixture
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO assessment (taxon_id, status, criteria, assessed_on, assessor, source, url, notes)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.TaxonID, r.Status, nullable(r.Criteria), nullable(r.AssessedOn),
				nullable(r.Assessor), nullable(r.Source), nullable(r.URL), nullable(r.Notes))
			if err != nil {
				return 0, err
			}
		}
		return len(recs), nil

	case "habitat":
		var recs []habitatFixture
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO habitat (taxon_id, habitat_type, importance, source) VALUES (?, ?, ?, ?)`,
				r.TaxonID, r.Type, r.Importance, nullable(r.Source))
			if err != nil {
				return 0, err
			}
		}
		return len(recs), nil

	case "image_asset":
		var recs []models.WritePayload
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			if _, err := s.InsertImageAsset(ctx, r); err != nil {
				return 0, err
			}
		}
		return len(recs), nil

	case "doc_chunk":
		var recs []chunkFixture
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO doc_chunk (taxon_id, text, source_url, source_id, license) VALUES (?, ?, ?, ?, ?)`,
				r.TaxonID, r.Text, nullable(r.SourceURL), nullable(r.SourceID), nullable(r.License))
			if err != nil {
				return 0, err
			}
		}
		return len(recs), nil

	case "occurrence":
		var recs []occurrenceFixture
		if err := json.Unmarshal(raw, &recs); err != nil {
			return 0, err
		}
		for _, r := range recs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO occurrence (taxon_id, longitude, latitude) VALUES (?, ?, ?)`,
				r.TaxonID, r.Longitude, r.Latitude)
			if err != nil {
				return 0, err
			}
		}
		return len(recs), nil
	}
	return 0, fmt.Errorf("unknown fixture table %q", table)
}
