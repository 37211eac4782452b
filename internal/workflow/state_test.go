package workflow

import (
	"reflect"
	"testing"

	"github.com/ebahrami/underthreat/models"
)

func strPtr(s string) *string { return &s }

func TestApplyOverwritesOwnedFields(t *testing.T) {
	st := State{
		Intent:         "lookup",
		MarkdownReport: "old report",
		DBResults:      models.SpeciesProfile{ScientificName: "Panthera leo"},
	}

	task := models.TaskReport
	st.Apply(Patch{
		Intent:         strPtr("report"),
		Task:           &task,
		MarkdownReport: strPtr("new report"),
		DBResults:      &models.SpeciesProfile{ScientificName: "Panthera uncia"},
		Entities:       []string{"Panthera uncia"},
	})

	if st.Intent != "report" {
		t.Fatalf("Intent = %q, want report", st.Intent)
	}
	if st.Task != models.TaskReport {
		t.Fatalf("Task = %q, want report", st.Task)
	}
	if st.MarkdownReport != "new report" {
		t.Fatalf("MarkdownReport = %q", st.MarkdownReport)
	}
	if st.DBResults.ScientificName != "Panthera uncia" {
		t.Fatalf("DBResults.ScientificName = %q", st.DBResults.ScientificName)
	}
	if !reflect.DeepEqual(st.Entities, []string{"Panthera uncia"}) {
		t.Fatalf("Entities = %v", st.Entities)
	}
}

func TestApplyNilMeansNoChange(t *testing.T) {
	st := State{
		Intent:         "lookup",
		Entities:       []string{"Panthera leo"},
		MarkdownReport: "report",
	}

	st.Apply(Patch{})

	if st.Intent != "lookup" || st.MarkdownReport != "report" {
		t.Fatalf("empty patch changed owned fields: %+v", st)
	}
	if !reflect.DeepEqual(st.Entities, []string{"Panthera leo"}) {
		t.Fatalf("empty patch changed Entities: %v", st.Entities)
	}
}

func TestApplyAppendsSharedLists(t *testing.T) {
	st := State{
		Errors:   []string{"e1"},
		Warnings: []string{"w1"},
		Trace:    []string{"start"},
	}

	st.Apply(Patch{
		Errors:   []string{"e2"},
		Warnings: []string{"w2", "w3"},
		Trace:    []string{"interpreted"},
	})
	st.Apply(Patch{Errors: []string{"e3"}})

	if !reflect.DeepEqual(st.Errors, []string{"e1", "e2", "e3"}) {
		t.Fatalf("Errors = %v", st.Errors)
	}
	if !reflect.DeepEqual(st.Warnings, []string{"w1", "w2", "w3"}) {
		t.Fatalf("Warnings = %v", st.Warnings)
	}
	if !reflect.DeepEqual(st.Trace, []string{"start", "interpreted"}) {
		t.Fatalf("Trace = %v", st.Trace)
	}
}
