package species

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

// Embedder produces a query vector for semantic snippet retrieval. A nil
// embedder (or a nil vector) disables the vector path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StageConfig bounds the stage's store queries.
type StageConfig struct {
	SnippetK     int
	HabitatLimit int
	ImageLimit   int
}

func (c StageConfig) withDefaults() StageConfig {
	if c.SnippetK <= 0 {
		c.SnippetK = 12
	}
	if c.HabitatLimit <= 0 {
		c.HabitatLimit = 15
	}
	if c.ImageLimit <= 0 {
		c.ImageLimit = 8
	}
	return c
}

// Stage resolves an entity to its canonical record, fetches profile data
// and supporting snippets, and handles image-asset writes.
type Stage struct {
	store    Store
	embedder Embedder
	logger   *log.Logger
	cfg      StageConfig
}

// NewStage wires the structured-data stage.
func NewStage(store Store, embedder Embedder, logger *log.Logger, cfg StageConfig) *Stage {
	if logger == nil {
		logger = log.New(os.Stdout, "[SPECIES] ", log.LstdFlags)
	}
	return &Stage{store: store, embedder: embedder, logger: logger, cfg: cfg.withDefaults()}
}

// ID implements workflow.Stage.
func (s *Stage) ID() workflow.StageID { return workflow.StageStructuredData }

// Run implements workflow.Stage.
func (s *Stage) Run(ctx context.Context, st workflow.State) workflow.Patch {
	if st.DBOp == workflow.DBOpWrite {
		return s.runWrite(ctx, st)
	}
	return s.runRead(ctx, st)
}

// requiredWriteFields must all be non-empty before an image_asset write is
// attempted. Order matters: the warning enumerates them in this order.
var requiredWriteFields = []string{"taxon_id", "url", "license", "attribution"}

func (s *Stage) runWrite(ctx context.Context, st workflow.State) workflow.Patch {
	payload := st.WritePayload
	if payload == nil || strings.ToLower(payload.Kind) != "image_asset" {
		return workflow.Patch{Warnings: []string{"Unsupported write kind; no action taken."}}
	}

	var missing []string
	for _, f := range requiredWriteFields {
		switch f {
		case "taxon_id":
			if payload.TaxonID == 0 {
				missing = append(missing, f)
			}
		case "url":
			if payload.URL == "" {
				missing = append(missing, f)
			}
		case "license":
			if payload.License == "" {
				missing = append(missing, f)
			}
		case "attribution":
			if payload.Attribution == "" {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return workflow.Patch{Warnings: []string{
			fmt.Sprintf("Missing required fields for image_asset: %s", strings.Join(missing, ", ")),
		}}
	}

	id, err := s.store.InsertImageAsset(ctx, *payload)
	if err != nil {
		return workflow.Patch{Warnings: []string{fmt.Sprintf("Insert failed: %v", err)}}
	}
	s.logger.Printf("inserted image_asset %d for taxon %d", id, payload.TaxonID)
	return workflow.Patch{Trace: []string{fmt.Sprintf("image_asset %d inserted", id)}}
}

func (s *Stage) runRead(ctx context.Context, st workflow.State) workflow.Patch {
	var patch workflow.Patch

	resolved, err := s.resolve(ctx, st.Entities)
	if err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("StructuredDataStage error: %v", err))
		patch.DBResults = &models.SpeciesProfile{}
		return patch
	}
	if resolved == nil {
		patch.Warnings = append(patch.Warnings, "No matching species found in the store for provided entities.")
		patch.DBResults = &models.SpeciesProfile{}
		return patch
	}

	profile := models.SpeciesProfile{
		TaxonID:        resolved.TaxonID,
		ScientificName: resolved.ScientificName,
		CommonNames:    resolved.CommonNames,
		Taxonomy:       resolved.Taxonomy,
	}

	if a, err := s.store.LatestAssessment(ctx, resolved.TaxonID); err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("StructuredDataStage error: %v", err))
	} else {
		profile.Assessment = a
	}
	if h, err := s.store.Habitats(ctx, resolved.TaxonID, s.cfg.HabitatLimit); err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("StructuredDataStage error: %v", err))
	} else {
		profile.Habitats = h
	}
	if imgs, err := s.store.Images(ctx, resolved.TaxonID, s.cfg.ImageLimit); err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("StructuredDataStage error: %v", err))
	} else {
		profile.Images = imgs
	}

	// Occurrence aggregation is optional; a failure here never aborts the
	// rest of the fetch.
	if wantsOccurrence(st.Task) {
		if n, bbox, err := s.store.OccurrenceSummary(ctx, resolved.TaxonID); err == nil && n > 0 {
			count := n
			profile.OccurrenceCount = &count
			profile.BBox = bbox
		}
	}

	snippets, warnings := s.retrieve(ctx, resolved, st.UserInput)
	patch.Warnings = append(patch.Warnings, warnings...)

	patch.DBResults = &profile
	patch.RetrievalContext = snippets
	return patch
}

// resolve tries entities in order; the first store match wins. A miss is
// not an error: (nil, nil) means nothing matched.
func (s *Stage) resolve(ctx context.Context, entities []string) (*ResolvedTaxon, error) {
	for _, ent := range entities {
		if strings.TrimSpace(ent) == "" {
			continue
		}
		taxon, err := s.store.ResolveSpecies(ctx, ent)
		if err == models.ErrSpeciesNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		return taxon, nil
	}
	return nil, nil
}

// retrieve fetches supporting snippets: vector search when an embedding is
// available, silently falling back to keyword search otherwise.
func (s *Stage) retrieve(ctx context.Context, taxon *ResolvedTaxon, query string) ([]models.Snippet, []string) {
	var warnings []string
	var snippets []models.Snippet

	if s.embedder != nil {
		text := query
		if text == "" {
			text = taxon.ScientificName
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			warnings = append(warnings, "Vector retrieval failed; falling back to keyword.")
		} else if len(vec) > 0 {
			found, err := s.store.SearchChunksByVector(ctx, taxon.TaxonID, vec, s.cfg.SnippetK)
			if err == nil {
				snippets = found
			}
		}
	}

	if len(snippets) == 0 {
		kw := query
		if kw == "" {
			kw = taxon.ScientificName
		}
		found, err := s.store.SearchChunksByKeyword(ctx, taxon.TaxonID, kw, s.cfg.SnippetK)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Keyword retrieval failed: %v", err))
			return nil, warnings
		}
		snippets = found
	}
	return snippets, warnings
}

func wantsOccurrence(task models.Task) bool {
	switch task {
	case models.TaskMap, models.TaskTrend, models.TaskReport:
		return true
	default:
		return false
	}
}
