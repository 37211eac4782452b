// Package interpret extracts structured intent from raw user text via the
// language-model provider.
package interpret

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/ebahrami/underthreat/internal/llm"
	"github.com/ebahrami/underthreat/models"
)

const systemPrompt = `You interpret questions about endangered species.
Respond with a single JSON object and nothing else:
{
  "intent": "<short intent label>",
  "entities": ["<scientific or common species names mentioned>"],
  "task": "<one of: lookup, compare, map, trend, image_gallery, report, write, other>",
  "required_tools": ["<any of: StructuredDataStage, WebResearcher, Reporter>"],
  "query_plan": ["<ordered steps to answer the question>"]
}`

// Interpreter turns user text into a models.Interpretation. It never fails:
// a provider error or malformed reply yields the conservative default plus
// a warning, per the collaborator contract.
type Interpreter struct {
	provider llm.Provider
	logger   *log.Logger
}

// New creates an interpreter. A nil provider always falls back to the
// default interpretation, which keeps the workflow usable offline.
func New(provider llm.Provider, logger *log.Logger) *Interpreter {
	if logger == nil {
		logger = log.New(os.Stdout, "[INTERPRET] ", log.LstdFlags)
	}
	return &Interpreter{provider: provider, logger: logger}
}

// Interpret implements workflow.IntentExtractor.
func (i *Interpreter) Interpret(ctx context.Context, query string) (models.Interpretation, []string) {
	if i.provider == nil {
		return defaultInterpretation(), []string{"no language model configured; using default interpretation"}
	}

	reply, err := i.provider.Complete(ctx, systemPrompt, query)
	if err != nil {
		i.logger.Printf("completion failed: %v", err)
		return defaultInterpretation(), []string{"intent extraction failed; using conservative default"}
	}

	itp, err := parseReply(reply)
	if err != nil {
		i.logger.Printf("malformed interpretation: %v", err)
		return defaultInterpretation(), []string{"intent extraction returned malformed output; using conservative default"}
	}
	return itp, nil
}

// parseReply decodes the model reply, tolerating code fences and prose
// around the JSON object.
func parseReply(reply string) (models.Interpretation, error) {
	var raw struct {
		Intent        string   `json:"intent"`
		Entities      []string `json:"entities"`
		Task          string   `json:"task"`
		RequiredTools []string `json:"required_tools"`
		QueryPlan     []string `json:"query_plan"`
	}

	body := extractJSON(reply)
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.Interpretation{}, err
	}

	itp := models.Interpretation{
		Intent:        raw.Intent,
		Entities:      raw.Entities,
		Task:          models.ParseTask(raw.Task),
		RequiredTools: raw.RequiredTools,
		QueryPlan:     raw.QueryPlan,
	}
	if itp.Intent == "" {
		itp.Intent = "lookup"
	}
	return itp, nil
}

func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func defaultInterpretation() models.Interpretation {
	return models.Interpretation{
		Intent:        "lookup",
		Entities:      []string{},
		Task:          models.TaskLookup,
		RequiredTools: []string{"StructuredDataStage"},
		QueryPlan: []string{
			"resolve the species in the structured store",
			"fetch profile, assessment and supporting snippets",
			"compose the report",
		},
	}
}
