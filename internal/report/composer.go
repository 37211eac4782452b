// Package report renders the final display model and markdown document
// from whatever the gathering stages produced. No LLM involved.
package report

import (
	"fmt"
	"strings"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

const (
	maxImageEntries = 12
	placeholder     = "—"
	noSummaryText   = "No external summary available."
	unknownSpecies  = "Unknown species"
)

// Composer implements workflow.Composer. It is pure and total: identical
// inputs produce byte-identical output, and empty inputs still render a
// complete document with placeholders.
type Composer struct{}

// Compose implements workflow.Composer.
func (Composer) Compose(st workflow.State) workflow.Patch {
	ui := models.UISummary{
		Species:     st.DBResults.ScientificName,
		Status:      StatusChip(st.DBResults.Assessment),
		Taxonomy:    st.DBResults.Taxonomy,
		ImageCount:  len(st.ImageCandidates),
		SourceCount: len(st.WebFindings),
	}
	md := Markdown(st.DBResults, st.WebFindings, st.ImageCandidates)
	return workflow.Patch{UISummary: &ui, MarkdownReport: &md}
}

// StatusChip renders "{status} ({date})" when a date is present, the bare
// status otherwise, and "Unknown" when no assessment exists.
func StatusChip(a *models.Assessment) string {
	if a == nil {
		return "Unknown"
	}
	status := a.Status
	if status == "" {
		status = "Unknown"
	}
	if a.AssessedOn != "" {
		return fmt.Sprintf("%s (%s)", status, a.AssessedOn)
	}
	return status
}

// Markdown renders the report document. Section order is fixed; missing
// values render as placeholders rather than dropped sections.
func Markdown(db models.SpeciesProfile, findings []models.Finding, images []models.ImageCandidate) string {
	sci := db.ScientificName
	if sci == "" {
		sci = unknownSpecies
	}
	common := strings.Join(db.CommonNames, ", ")
	if common == "" {
		common = placeholder
	}
	summary := noSummaryText
	if len(findings) > 0 && findings[0].Text != "" {
		summary = findings[0].Text
	}

	lines := []string{
		fmt.Sprintf("# %s — %s", sci, StatusChip(db.Assessment)),
		fmt.Sprintf("**Common names**: %s\n", common),
		"## Summary",
		summary,
		"\n## Taxonomy",
		taxonomyLine(db.Taxonomy),
		"\n## Images",
	}

	for i, im := range images {
		if i >= maxImageEntries {
			break
		}
		title := im.Title
		if title == "" {
			title = "Image"
		}
		license := im.License
		if license == "" {
			license = "?"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s](%s) — %s · %s", i+1, title, im.URL, license, im.Attribution))
	}

	if len(findings) > 0 {
		lines = append(lines, "\n## Sources")
		for i, f := range findings {
			source := f.Source
			if source == "" {
				source = "?"
			}
			lines = append(lines, fmt.Sprintf("[%d] %s: %s", i+1, source, f.URL))
		}
	}

	return strings.Join(lines, "\n")
}

func taxonomyLine(t models.Taxonomy) string {
	ranks := []struct {
		label string
		value string
	}{
		{"Kingdom", t.Kingdom},
		{"Phylum", t.Phylum},
		{"Class", t.Class},
		{"Order", t.Order},
		{"Family", t.Family},
		{"Genus", t.Genus},
	}
	parts := make([]string, len(ranks))
	for i, r := range ranks {
		v := r.value
		if v == "" {
			v = placeholder
		}
		parts[i] = fmt.Sprintf("%s: %s", r.label, v)
	}
	return strings.Join(parts, " · ")
}
