package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

type fixedInterpreter struct{}

func (fixedInterpreter) Interpret(ctx context.Context, query string) (models.Interpretation, []string) {
	return models.Interpretation{
		Intent:   "lookup",
		Entities: []string{"Panthera leo"},
		Task:     models.TaskLookup,
	}, nil
}

type fixedStage struct{}

func (fixedStage) ID() workflow.StageID { return workflow.StageStructuredData }

func (fixedStage) Run(ctx context.Context, st workflow.State) workflow.Patch {
	return workflow.Patch{
		DBResults: &models.SpeciesProfile{
			ScientificName: "Panthera leo",
			Assessment:     &models.Assessment{Status: "VU", AssessedOn: "2023-01-01"},
		},
	}
}

type fixedComposer struct{}

func (fixedComposer) Compose(st workflow.State) workflow.Patch {
	md := "# Panthera leo — VU (2023-01-01)"
	return workflow.Patch{
		MarkdownReport: &md,
		UISummary: &models.UISummary{
			Species: st.DBResults.ScientificName,
			Status:  "VU (2023-01-01)",
		},
	}
}

func newTestHandler(t *testing.T) *QueryHandler {
	t.Helper()
	route := func(st *workflow.State) (workflow.Decision, error) {
		return workflow.Decision{
			Stages:   []workflow.StageID{workflow.StageStructuredData},
			Decision: "StructuredDataStage",
		}, nil
	}
	eng, err := workflow.NewEngine(nil, nil, fixedInterpreter{}, route, []workflow.Stage{fixedStage{}}, fixedComposer{}, time.Second)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return &QueryHandler{Engine: eng}
}

func postQuery(t *testing.T, h *QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	rec := postQuery(t, newTestHandler(t), `{"query": "status of Panthera leo"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RequestID      string            `json:"request_id"`
		RouteDecision  string            `json:"route_decision"`
		UIModel        *models.UISummary `json:"ui_model"`
		MarkdownReport string            `json:"markdown_report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RequestID == "" {
		t.Fatal("request_id missing")
	}
	if resp.RouteDecision != "StructuredDataStage" {
		t.Fatalf("route_decision = %q", resp.RouteDecision)
	}
	if resp.UIModel == nil || resp.UIModel.Species != "Panthera leo" {
		t.Fatalf("ui_model = %+v", resp.UIModel)
	}
	if !strings.HasPrefix(resp.MarkdownReport, "# Panthera leo") {
		t.Fatalf("markdown_report = %q", resp.MarkdownReport)
	}
}

func TestHandleQueryBlankInput(t *testing.T) {
	rec := postQuery(t, newTestHandler(t), `{"query": "   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "query must not be blank") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHandleQueryBadBody(t *testing.T) {
	rec := postQuery(t, newTestHandler(t), `{"query": 42}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
