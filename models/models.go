package models

import "errors"

// ErrSpeciesNotFound is returned when no taxon matches any provided entity.
var ErrSpeciesNotFound = errors.New("species not found")

// Task is the coarse classification of user intent driving routing.
type Task string

const (
	TaskLookup       Task = "lookup"
	TaskCompare      Task = "compare"
	TaskMap          Task = "map"
	TaskTrend        Task = "trend"
	TaskImageGallery Task = "image_gallery"
	TaskReport       Task = "report"
	TaskWrite        Task = "write"
	TaskOther        Task = "other"
)

// ParseTask maps a free-form label onto the closed Task set, defaulting to
// TaskOther for anything unrecognized.
func ParseTask(s string) Task {
	switch Task(s) {
	case TaskLookup, TaskCompare, TaskMap, TaskTrend, TaskImageGallery, TaskReport, TaskWrite:
		return Task(s)
	default:
		return TaskOther
	}
}

// Interpretation is the structured record produced by the intent extractor.
type Interpretation struct {
	Intent        string   `json:"intent"`
	Entities      []string `json:"entities"`
	Task          Task     `json:"task"`
	RequiredTools []string `json:"required_tools"`
	QueryPlan     []string `json:"query_plan"`
}

// Taxonomy holds the six fixed ranks; empty values render as placeholders.
type Taxonomy struct {
	Kingdom string `json:"kingdom,omitempty"`
	Phylum  string `json:"phylum,omitempty"`
	Class   string `json:"class,omitempty"`
	Order   string `json:"order,omitempty"`
	Family  string `json:"family,omitempty"`
	Genus   string `json:"genus,omitempty"`
}

// Assessment is a risk assessment for a taxon.
type Assessment struct {
	Status     string `json:"status"`
	Criteria   string `json:"criteria,omitempty"`
	AssessedOn string `json:"assessed_on,omitempty"` // ISO date, may be empty
	Assessor   string `json:"assessor,omitempty"`
	Source     string `json:"source,omitempty"`
	URL        string `json:"url,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Habitat describes one habitat association of a taxon.
type Habitat struct {
	Type       string  `json:"habitat_type"`
	Importance float64 `json:"importance"`
	Source     string  `json:"source,omitempty"`
}

// ImageAsset is a stored image record for a taxon.
type ImageAsset struct {
	ID           int64  `json:"id"`
	Title        string `json:"title,omitempty"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Format       string `json:"format,omitempty"`
	License      string `json:"license,omitempty"`
	Attribution  string `json:"attribution,omitempty"`
	Source       string `json:"source,omitempty"`
	CapturedOn   string `json:"captured_on,omitempty"`
}

// BoundingBox is a lon/lat extent: min-lon, min-lat, max-lon, max-lat.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// SpeciesProfile is the canonical resolved record for one entity.
// Created fresh per request by the structured-data stage and never mutated
// after return.
type SpeciesProfile struct {
	TaxonID         int64        `json:"taxon_id,omitempty"`
	ScientificName  string       `json:"scientific_name,omitempty"`
	CommonNames     []string     `json:"common_names,omitempty"`
	Taxonomy        Taxonomy     `json:"taxonomy"`
	Assessment      *Assessment  `json:"assessment,omitempty"`
	Habitats        []Habitat    `json:"habitats,omitempty"`
	Images          []ImageAsset `json:"images,omitempty"`
	OccurrenceCount *int         `json:"occurrence_count,omitempty"`
	BBox            *BoundingBox `json:"bbox,omitempty"`
}

// IsZero reports whether nothing was resolved.
func (p SpeciesProfile) IsZero() bool {
	return p.TaxonID == 0 && p.ScientificName == ""
}

// Snippet is one retrieval-context text chunk with provenance.
type Snippet struct {
	ID        int64   `json:"id"`
	Text      string  `json:"text"`
	SourceURL string  `json:"source_url,omitempty"`
	SourceID  string  `json:"source_id,omitempty"`
	License   string  `json:"license,omitempty"`
	Score     float64 `json:"score"`
}

// Finding is one piece of external evidence gathered by web enrichment.
type Finding struct {
	Text    string `json:"text"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	License string `json:"license,omitempty"`
}

// ImageCandidate is a licensed image discovered by web enrichment.
type ImageCandidate struct {
	URL         string `json:"url"`
	License     string `json:"license"`
	Title       string `json:"title,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	Source      string `json:"source,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// WritePayload declares a store write requested by the user. Only the
// image_asset kind is supported.
type WritePayload struct {
	Kind         string `json:"kind"`
	TaxonID      int64  `json:"taxon_id,omitempty"`
	Title        string `json:"title,omitempty"`
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Format       string `json:"format,omitempty"`
	License      string `json:"license,omitempty"`
	Attribution  string `json:"attribution,omitempty"`
	Source       string `json:"source,omitempty"`
	CapturedOn   string `json:"captured_on,omitempty"`
}

// UISummary is the structured display model shown next to the markdown report.
type UISummary struct {
	Species     string   `json:"species,omitempty"`
	Status      string   `json:"status"`
	Taxonomy    Taxonomy `json:"taxonomy"`
	ImageCount  int      `json:"image_count"`
	SourceCount int      `json:"source_count"`
}
