// Package router decides which workflow stages run for a request, from the
// interpreted intent plus light keyword heuristics.
package router

import (
	"strings"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

var imageWords = []string{
	"image", "images", "photo", "photos", "picture", "pictures", "gallery", "illustration",
}

var latestWords = []string{
	"latest", "recent", "update", "updated", "newest",
}

// tasks that need canonical data even when no entity was recognized
var structuredTasks = map[models.Task]bool{
	models.TaskLookup:  true,
	models.TaskCompare: true,
	models.TaskMap:     true,
	models.TaskTrend:   true,
	models.TaskReport:  true,
}

// Route is a pure function over the state. It fails only when the user
// input is blank; an empty plan is a legitimate no-op decision.
func Route(st *workflow.State) (workflow.Decision, error) {
	if st == nil || strings.TrimSpace(st.UserInput) == "" {
		return workflow.Decision{}, workflow.ErrNoUserInput
	}

	userLC := strings.ToLower(st.UserInput)
	speciesPresent := len(st.Entities) > 0
	haveImages := len(st.ImageCandidates) > 0

	wantsImages := st.Task == models.TaskImageGallery || containsAny(userLC, imageWords)
	wantsLatest := containsAny(userLC, latestWords)
	writeRequest := st.Task == models.TaskWrite ||
		strings.Contains(userLC, "upload") ||
		(strings.Contains(userLC, "add") && strings.Contains(userLC, "image"))

	var stages []workflow.StageID
	var reasons []string

	if writeRequest {
		stages = append(stages, workflow.StageStructuredData)
		reasons = append(reasons, "User requested a write/update operation.")
	} else {
		if speciesPresent || structuredTasks[st.Task] {
			stages = append(stages, workflow.StageStructuredData)
			if speciesPresent {
				reasons = append(reasons, "Species/entities present; fetch canonical data from the store.")
			} else {
				reasons = append(reasons, "Task requires structured data (lookup/compare/map/trend/report).")
			}
		}

		needWeb := (wantsImages && !haveImages) ||
			wantsLatest ||
			toolRequested(st.RequiredTools, "WebResearcher") ||
			!speciesPresent

		if needWeb {
			if len(stages) == 0 && !speciesPresent {
				stages = append(stages, workflow.StageWebEnrichment)
				reasons = append(reasons, "No species recognized; use web to identify/clarify.")
			} else {
				stages = append(stages, workflow.StageWebEnrichment)
				if wantsImages && !haveImages {
					reasons = append(reasons, "Need images; use web enrichment with license filters.")
				}
				if wantsLatest {
					reasons = append(reasons, "User asked for recent/updated info; include web enrichment.")
				}
				if toolRequested(st.RequiredTools, "WebResearcher") {
					reasons = append(reasons, "Interpreter requested the web researcher.")
				}
			}
		}
	}

	deduped := dedupe(stages)
	decision := "(no-op)"
	if len(deduped) > 0 {
		parts := make([]string, len(deduped))
		for i, s := range deduped {
			parts[i] = string(s)
		}
		decision = strings.Join(parts, " -> ")
	}

	return workflow.Decision{Stages: deduped, Decision: decision, Reasons: reasons}, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func toolRequested(tools []string, name string) bool {
	for _, t := range tools {
		if t == name {
			return true
		}
	}
	return false
}

// dedupe preserves first occurrence order.
func dedupe(in []workflow.StageID) []workflow.StageID {
	seen := make(map[workflow.StageID]bool, len(in))
	out := make([]workflow.StageID, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
