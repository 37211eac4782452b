package router

import (
	"reflect"
	"testing"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

func TestRouteBlankInputFails(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		st := &workflow.State{UserInput: input}
		if _, err := Route(st); err != workflow.ErrNoUserInput {
			t.Fatalf("Route(%q) error = %v, want ErrNoUserInput", input, err)
		}
	}
	if _, err := Route(nil); err != workflow.ErrNoUserInput {
		t.Fatalf("Route(nil) error = %v, want ErrNoUserInput", err)
	}
}

func TestRouteWriteShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		st   workflow.State
	}{
		{
			name: "write task wins over image keywords",
			st: workflow.State{
				UserInput: "add this photo to the gallery, latest images",
				Task:      models.TaskWrite,
				Entities:  []string{"Panthera leo"},
			},
		},
		{
			name: "upload keyword",
			st:   workflow.State{UserInput: "please upload my observation", Task: models.TaskOther},
		},
		{
			name: "add plus image keyword",
			st:   workflow.State{UserInput: "add an image for the lion", Task: models.TaskOther},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := Route(&tt.st)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			want := []workflow.StageID{workflow.StageStructuredData}
			if !reflect.DeepEqual(dec.Stages, want) {
				t.Fatalf("Route() stages = %v, want %v", dec.Stages, want)
			}
		})
	}
}

func TestRouteNoSpeciesGoesWebOnly(t *testing.T) {
	st := &workflow.State{UserInput: "what is the rarest big cat", Task: models.TaskOther}
	dec, err := Route(st)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	want := []workflow.StageID{workflow.StageWebEnrichment}
	if !reflect.DeepEqual(dec.Stages, want) {
		t.Fatalf("Route() stages = %v, want %v", dec.Stages, want)
	}
	if len(dec.Reasons) != 1 || dec.Reasons[0] != "No species recognized; use web to identify/clarify." {
		t.Fatalf("Route() reasons = %v", dec.Reasons)
	}
}

func TestRouteDecisions(t *testing.T) {
	tests := []struct {
		name       string
		st         workflow.State
		wantStages []workflow.StageID
	}{
		{
			name:       "species present only",
			st:         workflow.State{UserInput: "tell me about lions", Entities: []string{"Panthera leo"}, Task: models.TaskLookup},
			wantStages: []workflow.StageID{workflow.StageStructuredData},
		},
		{
			name:       "structured task without entities still needs web",
			st:         workflow.State{UserInput: "conservation status please", Task: models.TaskLookup},
			wantStages: []workflow.StageID{workflow.StageStructuredData, workflow.StageWebEnrichment},
		},
		{
			name:       "species plus image keyword",
			st:         workflow.State{UserInput: "Show me status and images for Panthera leo", Entities: []string{"Panthera leo"}, Task: models.TaskLookup},
			wantStages: []workflow.StageID{workflow.StageStructuredData, workflow.StageWebEnrichment},
		},
		{
			name: "existing candidates suppress image fetch",
			st: workflow.State{
				UserInput:       "photos of lions",
				Entities:        []string{"Panthera leo"},
				Task:            models.TaskOther,
				ImageCandidates: []models.ImageCandidate{{URL: "https://example.org/a.jpg"}},
			},
			wantStages: []workflow.StageID{workflow.StageStructuredData},
		},
		{
			name:       "recency keyword includes web",
			st:         workflow.State{UserInput: "what's the latest on Panthera uncia", Entities: []string{"Panthera uncia"}, Task: models.TaskLookup},
			wantStages: []workflow.StageID{workflow.StageStructuredData, workflow.StageWebEnrichment},
		},
		{
			name:       "interpreter requested web researcher",
			st:         workflow.State{UserInput: "tell me about lions", Entities: []string{"Panthera leo"}, Task: models.TaskLookup, RequiredTools: []string{"WebResearcher"}},
			wantStages: []workflow.StageID{workflow.StageStructuredData, workflow.StageWebEnrichment},
		},
		{
			name:       "image gallery task",
			st:         workflow.State{UserInput: "lion gallery", Entities: []string{"Panthera leo"}, Task: models.TaskImageGallery},
			wantStages: []workflow.StageID{workflow.StageStructuredData, workflow.StageWebEnrichment},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := Route(&tt.st)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if !reflect.DeepEqual(dec.Stages, tt.wantStages) {
				t.Fatalf("Route() stages = %v, want %v", dec.Stages, tt.wantStages)
			}
		})
	}
}

func TestRouteIsDeterministicAndDeduplicated(t *testing.T) {
	st := workflow.State{
		UserInput:     "latest pictures of snow leopards",
		Entities:      []string{"Panthera uncia"},
		Task:          models.TaskImageGallery,
		RequiredTools: []string{"WebResearcher"},
	}

	first, err := Route(&st)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	second, err := Route(&st)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Route() not deterministic: %v vs %v", first, second)
	}

	seen := map[workflow.StageID]bool{}
	for _, s := range first.Stages {
		if seen[s] {
			t.Fatalf("duplicate stage %s in %v", s, first.Stages)
		}
		seen[s] = true
	}
}

func TestRouteDecisionString(t *testing.T) {
	st := workflow.State{UserInput: "images of Panthera leo now", Entities: []string{"Panthera leo"}, Task: models.TaskLookup}
	dec, err := Route(&st)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Decision != "StructuredDataStage -> WebEnrichmentStage" {
		t.Fatalf("Route() decision = %q", dec.Decision)
	}
}

func TestRouteSingleStageDecisionString(t *testing.T) {
	st := workflow.State{UserInput: "upload this shot", Task: models.TaskWrite}
	dec, err := Route(&st)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Decision != "StructuredDataStage" {
		t.Fatalf("Route() decision = %q, want StructuredDataStage", dec.Decision)
	}
}
