package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ebahrami/underthreat/internal/telemetry"
	"github.com/ebahrami/underthreat/models"
)

var engineTracer trace.Tracer = otel.Tracer("underthreat/internal/workflow")

// IntentExtractor produces the structured interpretation of raw user text.
// Implementations must not fail: on any upstream problem they return the
// conservative default interpretation plus warnings.
type IntentExtractor interface {
	Interpret(ctx context.Context, query string) (models.Interpretation, []string)
}

// RouteFunc decides which stages run next. It is pure over the state.
type RouteFunc func(st *State) (Decision, error)

// Stage is one fan-out unit of the workflow graph. Run receives a copy of
// the shared state and returns a patch touching only the stage's own fields
// (plus the append-only lists).
type Stage interface {
	ID() StageID
	Run(ctx context.Context, st State) Patch
}

// Composer renders the final report. It must be total: it always returns a
// patch, whatever the state looks like.
type Composer interface {
	Compose(st State) Patch
}

// Request is one unit of work for the engine.
type Request struct {
	Query        string
	WritePayload *models.WritePayload
}

// Engine owns the shared state for a single run and walks the graph:
// Start -> Interpreted -> Routed -> {fan-out stages} -> Reported -> Done.
// Stage failures are contained; only blank input is fatal.
type Engine struct {
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
	interpreter IntentExtractor
	route       RouteFunc
	stages      map[StageID]Stage
	composer    Composer
	timeout     time.Duration
}

// NewEngine wires the engine. Duplicate stage IDs are a construction error.
func NewEngine(logger *log.Logger, tele *telemetry.Telemetry, interpreter IntentExtractor, route RouteFunc, stages []Stage, composer Composer, timeout time.Duration) (*Engine, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	if interpreter == nil {
		return nil, fmt.Errorf("intent extractor is required")
	}
	if route == nil {
		return nil, fmt.Errorf("route func is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	byID := make(map[StageID]Stage, len(stages))
	for _, st := range stages {
		if _, dup := byID[st.ID()]; dup {
			return nil, fmt.Errorf("duplicate stage registration: %s", st.ID())
		}
		byID[st.ID()] = st
	}
	return &Engine{
		logger:      logger,
		telemetry:   tele,
		interpreter: interpreter,
		route:       route,
		stages:      byID,
		composer:    composer,
		timeout:     timeout,
	}, nil
}

// Run processes one request end to end and returns the final state. The
// returned error is non-nil only for blank input; every other failure is
// recorded on the state and the report still renders.
func (e *Engine) Run(ctx context.Context, req Request) (*State, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrNoUserInput
	}

	start := time.Now()
	st := &State{
		RequestID:    uuid.New().String(),
		UserInput:    req.Query,
		DBOp:         DBOpRead,
		WritePayload: req.WritePayload,
	}

	ctx, span := engineTracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("request.id", st.RequestID)))
	defer span.End()

	e.logger.Printf("run %s: %q", st.RequestID, req.Query)
	st.Trace = append(st.Trace, "start")

	e.interpret(ctx, st)
	if err := e.routeState(st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recordRun(start, true)
		return nil, err
	}

	e.fanOut(ctx, st)

	// Reported: the composer is total, never raises.
	st.Apply(e.composer.Compose(*st))
	st.Trace = append(st.Trace, "reported")

	span.SetAttributes(
		attribute.Int("run.errors", len(st.Errors)),
		attribute.Int("run.warnings", len(st.Warnings)),
		attribute.String("run.route", st.RouteDecision),
	)
	span.SetStatus(codes.Ok, "completed")
	e.recordRun(start, false)
	e.logger.Printf("run %s completed in %v (route=%s, errors=%d)", st.RequestID, time.Since(start), st.RouteDecision, len(st.Errors))
	return st, nil
}

// interpret runs the intent extractor. The extractor contract already
// swallows upstream failures, so this transition cannot fail.
func (e *Engine) interpret(ctx context.Context, st *State) {
	ctx, span := engineTracer.Start(ctx, "workflow.interpret")
	defer span.End()

	ictx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	itp, warnings := e.interpreter.Interpret(ictx, st.UserInput)
	st.Intent = itp.Intent
	st.Entities = itp.Entities
	st.Task = itp.Task
	st.RequiredTools = itp.RequiredTools
	st.QueryPlan = itp.QueryPlan
	if itp.Task == models.TaskWrite {
		st.DBOp = DBOpWrite
	}
	st.Warnings = append(st.Warnings, warnings...)
	st.Trace = append(st.Trace, "interpreted")
	span.SetAttributes(
		attribute.String("interpret.task", string(itp.Task)),
		attribute.Int("interpret.entities", len(itp.Entities)),
	)
}

func (e *Engine) routeState(st *State) error {
	dec, err := e.route(st)
	if err != nil {
		return fmt.Errorf("routing failed: %w", err)
	}
	st.NextStages = dec.Stages
	st.RouteDecision = dec.Decision
	st.RouteReasons = dec.Reasons
	st.Trace = append(st.Trace, "routed: "+dec.Decision)
	return nil
}

// fanOut executes the routed stages concurrently and joins before the
// composer runs. Patches are merged under one mutex so the append-only
// lists never lose updates. An empty plan skips straight to Reported.
func (e *Engine) fanOut(ctx context.Context, st *State) {
	if len(st.NextStages) == 0 {
		return
	}

	snapshot := *st
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range st.NextStages {
		stage, ok := e.stages[id]
		if !ok {
			mu.Lock()
			st.Errors = append(st.Errors, fmt.Sprintf("stage %s is not registered", id))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(stage Stage) {
			defer wg.Done()
			patch := e.runStage(ctx, stage, snapshot)
			mu.Lock()
			st.Apply(patch)
			mu.Unlock()
		}(stage)
	}
	wg.Wait()
}

// runStage executes one stage with panic containment. Any escape becomes an
// errors entry instead of aborting the run.
func (e *Engine) runStage(ctx context.Context, stage Stage, snapshot State) (patch Patch) {
	ctx, span := engineTracer.Start(ctx, "workflow.stage",
		trace.WithAttributes(attribute.String("stage.id", string(stage.ID()))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Sprintf("%s panicked: %v", stage.ID(), r)
			span.SetStatus(codes.Error, err)
			if e.telemetry != nil {
				e.telemetry.RecordStage(string(stage.ID()), true)
			}
			patch = Patch{Errors: []string{err}}
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	patch = stage.Run(sctx, snapshot)
	patch.Trace = append(patch.Trace, fmt.Sprintf("%s done in %v", stage.ID(), time.Since(start).Round(time.Millisecond)))
	if e.telemetry != nil {
		e.telemetry.RecordStage(string(stage.ID()), len(patch.Errors) > 0)
	}
	span.SetStatus(codes.Ok, "completed")
	return patch
}

func (e *Engine) recordRun(start time.Time, failed bool) {
	if e.telemetry != nil {
		e.telemetry.RecordRequest(time.Since(start), failed)
	}
}
