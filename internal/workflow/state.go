package workflow

import (
	"errors"

	"github.com/ebahrami/underthreat/models"
)

// ErrNoUserInput is the one fatal error: a run cannot start without text.
var ErrNoUserInput = errors.New("user input is required")

// StageID identifies a fan-out stage of the workflow graph. The set is
// closed; the router emits StageIDs, so an unknown stage name is a
// construction-time error rather than a silent no-op at dispatch.
type StageID string

const (
	StageStructuredData StageID = "StructuredDataStage"
	StageWebEnrichment  StageID = "WebEnrichmentStage"
)

// DBOp selects the structured-data stage mode.
type DBOp string

const (
	DBOpRead  DBOp = "read"
	DBOpWrite DBOp = "write"
)

// State is the single shared record threaded through one workflow run.
// It is created per request, owned by the engine, and discarded after the
// report is composed. Stages never mutate it directly; they return a Patch.
type State struct {
	RequestID string
	UserInput string

	// Written by the intent extractor.
	Intent        string
	Entities      []string
	Task          models.Task
	RequiredTools []string
	QueryPlan     []string
	DBOp          DBOp
	WritePayload  *models.WritePayload

	// Written by the router.
	NextStages    []StageID
	RouteDecision string
	RouteReasons  []string

	// Written by the structured-data stage.
	DBResults        models.SpeciesProfile
	RetrievalContext []models.Snippet

	// Written by the web-enrichment stage.
	WebFindings     []models.Finding
	ImageCandidates []models.ImageCandidate

	// Written by the report composer.
	UISummary      *models.UISummary
	MarkdownReport string

	// Append-only lists shared by every stage.
	Errors   []string
	Warnings []string
	Trace    []string
}

// Patch is the partial field set a stage returns for merging into State.
// Nil pointers and nil slices mean "no change"; Errors, Warnings and Trace
// are appended rather than replaced.
type Patch struct {
	Intent        *string
	Entities      []string
	Task          *models.Task
	RequiredTools []string
	QueryPlan     []string
	DBOp          *DBOp
	WritePayload  *models.WritePayload

	NextStages    []StageID
	RouteDecision *string
	RouteReasons  []string

	DBResults        *models.SpeciesProfile
	RetrievalContext []models.Snippet

	WebFindings     []models.Finding
	ImageCandidates []models.ImageCandidate

	UISummary      *models.UISummary
	MarkdownReport *string

	Errors   []string
	Warnings []string
	Trace    []string
}

// Apply merges p into s. Key-overwrite for owned fields, append for the
// shared list fields. The engine serializes calls, so no locking here.
func (s *State) Apply(p Patch) {
	if p.Intent != nil {
		s.Intent = *p.Intent
	}
	if p.Entities != nil {
		s.Entities = p.Entities
	}
	if p.Task != nil {
		s.Task = *p.Task
	}
	if p.RequiredTools != nil {
		s.RequiredTools = p.RequiredTools
	}
	if p.QueryPlan != nil {
		s.QueryPlan = p.QueryPlan
	}
	if p.DBOp != nil {
		s.DBOp = *p.DBOp
	}
	if p.WritePayload != nil {
		s.WritePayload = p.WritePayload
	}
	if p.NextStages != nil {
		s.NextStages = p.NextStages
	}
	if p.RouteDecision != nil {
		s.RouteDecision = *p.RouteDecision
	}
	if p.RouteReasons != nil {
		s.RouteReasons = p.RouteReasons
	}
	if p.DBResults != nil {
		s.DBResults = *p.DBResults
	}
	if p.RetrievalContext != nil {
		s.RetrievalContext = p.RetrievalContext
	}
	if p.WebFindings != nil {
		s.WebFindings = p.WebFindings
	}
	if p.ImageCandidates != nil {
		s.ImageCandidates = p.ImageCandidates
	}
	if p.UISummary != nil {
		s.UISummary = p.UISummary
	}
	if p.MarkdownReport != nil {
		s.MarkdownReport = *p.MarkdownReport
	}
	s.Errors = append(s.Errors, p.Errors...)
	s.Warnings = append(s.Warnings, p.Warnings...)
	s.Trace = append(s.Trace, p.Trace...)
}

// Decision is the router's output: an ordered, deduplicated stage list plus
// human-readable reasoning. Immutable once produced.
type Decision struct {
	Stages   []StageID
	Decision string
	Reasons  []string
}
