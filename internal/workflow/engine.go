package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/observability"
	"github.com/jonathan/resourcewise/internal/prompts"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// maxSteps bounds a walk; the longest legal walk visits nine stages.
const maxSteps = 16

// ErrEmptyInput is returned for a blank utterance.
var ErrEmptyInput = errors.New("input is required")

// Deps are the collaborators of an Engine. Nil collaborators degrade the
// stages that need them.
type Deps struct {
	Model      llm.LanguageModel
	Resolver   TermResolver
	Schema     SchemaSource
	Executor   db.QueryExecutor
	Employees  db.EmployeeRepository
	Searcher   *matching.Searcher
	Vocabulary *vocabulary.Vocabulary
	Sessions   session.Store
	Logger     *slog.Logger
}

// Engine walks the stage graph for each request.
type Engine struct {
	handlers map[Stage]Handler
	model    llm.LanguageModel
	sessions session.Store
	logger   *slog.Logger
}

// NewEngine wires the stage handlers.
func NewEngine(d Deps) *Engine {
	logger := orDefault(d.Logger)
	searcher := d.Searcher
	if searcher == nil {
		searcher = matching.NewSearcher(d.Vocabulary, matching.Options{}, logger)
	}
	return &Engine{
		handlers: map[Stage]Handler{
			StageIntentClassification:  NewIntentClassifier(d.Model, logger),
			StageProjectInfoExtraction: NewProjectInfoExtractor(d.Model, logger),
			StageQueryGeneration:       NewQueryGenerator(d.Model, d.Resolver, d.Schema, d.Vocabulary, logger),
			StageDatabaseExecution:     NewDatabaseStage(d.Executor, d.Employees, logger),
			StageResponseGeneration:    NewResponseGenerator(d.Model, logger),
			StageResourceMatching:      NewResourceMatcher(searcher),
		},
		model:    d.Model,
		sessions: d.Sessions,
		logger:   logger,
	}
}

// Run answers one utterance. Stage failures are reported in the Result; an
// error is returned only for an unusable request.
func (e *Engine) Run(ctx context.Context, req Request) (result *Result, err error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrEmptyInput
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	} else if !session.ValidID(req.SessionID) {
		return nil, fmt.Errorf("failed to start request: %w", session.ErrInvalidID)
	}

	ctx, span := observability.StartSpan(ctx, "workflow.run", attribute.String("session_id", req.SessionID))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	s := newState(req.SessionID, req.Input, req.Context, e.history(req))
	e.walk(ctx, req, s)
	result = e.result(s)
	e.remember(req, result)

	observability.RecordRequest(string(s.CurrentStage))
	span.SetAttributes(attribute.String("workflow.intent", string(s.Intent)), attribute.String("workflow.stage", string(s.CurrentStage)))
	e.logger.Info("request completed",
		slog.String("session_id", s.SessionID),
		slog.String("intent", string(s.Intent)),
		slog.String("stage", string(s.CurrentStage)),
		slog.Int("steps", len(s.Trail)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// walk executes stages until a terminal stage is reached.
func (e *Engine) walk(ctx context.Context, req Request, s *State) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("workflow panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			e.fail(s, &StageError{Code: CodeInternal, Stage: s.CurrentStage, Message: fmt.Sprintf("panic: %v", r)})
		}
	}()

	for steps := 0; !s.CurrentStage.Terminal(); steps++ {
		if steps >= maxSteps {
			e.fail(s, &StageError{Code: CodeInternal, Stage: s.CurrentStage, Message: "stage limit exceeded"})
			return
		}

		stage := s.CurrentStage
		start := time.Now()
		err := e.runStage(ctx, req, s)
		elapsed := time.Since(start)
		s.Trail = append(s.Trail, Step{Stage: stage, Duration: elapsed, Failed: err != nil})
		observability.RecordStage(string(stage), elapsed, err != nil)

		if err != nil {
			se := asStageError(stage, err)
			e.logger.Warn("stage failed",
				slog.String("session_id", s.SessionID),
				slog.String("stage", string(stage)),
				slog.String("code", string(se.Code)),
				slog.String("error", se.Error()),
			)
			s.Err = se
			if stage == StageResponseGeneration {
				s.Response = ""
				s.CurrentStage = StageCompletedWithError
				break
			}
			s.CurrentStage = StageResponseGeneration
			continue
		}
		s.CurrentStage = route(s)
	}
	s.Trail = append(s.Trail, Step{Stage: s.CurrentStage})
}

func (e *Engine) fail(s *State, se *StageError) {
	s.Err = se
	s.Response = ""
	s.CurrentStage = StageFailed
	s.Trail = append(s.Trail, Step{Stage: StageFailed})
}

// runStage executes the handler for the current stage, converting a panic into an INTERNAL_ERROR.
func (e *Engine) runStage(ctx context.Context, req Request, s *State) (err error) {
	stage := s.CurrentStage
	h, ok := e.handlers[stage]
	if !ok {
		return &StageError{Code: CodeInternal, Stage: stage, Message: "no handler registered"}
	}

	ctx, span := observability.StartSpan(ctx, "workflow."+string(stage), attribute.String("session_id", s.SessionID))
	emitProgress(req, stage, ProgressStarted, "")
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("stage panicked", slog.String("stage", string(stage)), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = &StageError{Code: CodeInternal, Stage: stage, Message: fmt.Sprintf("panic: %v", r)}
		}
		if err != nil {
			emitProgress(req, stage, ProgressFailed, err.Error())
		} else {
			emitProgress(req, stage, ProgressFinished, "")
		}
		observability.EndSpan(span, err)
	}()

	return h.Handle(ctx, s)
}

// route picks the successor of a stage that succeeded.
func route(s *State) Stage {
	switch s.CurrentStage {
	case StageIntentClassification:
		switch {
		case s.Intent == IntentResourceMatching:
			return StageProjectInfoExtraction
		case s.Intent.RequiresData():
			return StageQueryGeneration
		default:
			return StageCompleted
		}
	case StageProjectInfoExtraction:
		if len(s.MissingProjectInfo) > 0 {
			return StageResponseGeneration
		}
		return StageQueryGeneration
	case StageQueryGeneration:
		return StageDatabaseExecution
	case StageDatabaseExecution:
		return StageResponseGeneration
	case StageResponseGeneration:
		if s.Handled != nil && !s.Handled.Surfaced() {
			return StageCompletedWithError
		}
		if s.Intent == IntentResourceMatching && s.Phase == PhaseEmployeesRetrieved {
			return StageResourceMatching
		}
		return StageCompleted
	case StageResourceMatching:
		return StageResponseGeneration
	case StageCompleted, StageCompletedWithError, StageFailed:
		return s.CurrentStage
	}
	panic(fmt.Sprintf("unknown stage %q", s.CurrentStage))
}

func (e *Engine) result(s *State) *Result {
	res := &Result{
		SessionID: s.SessionID,
		Intent:    s.Intent,
		Stage:     s.CurrentStage,
		Match:     s.Match,
		Metadata:  metadata(s),
	}
	if s.Err != nil {
		res.Error = s.Err.public()
		res.Response = degradedMessage(s)
		return res
	}
	res.Response = s.Response
	if s.Handled != nil && s.Handled.Surfaced() {
		res.Error = s.Handled
	}
	return res
}

func degradedMessage(s *State) string {
	if s.CurrentStage == StageCompletedWithError && s.QueryResult != nil && s.QueryResult.RowCount > 0 {
		return fmt.Sprintf("I retrieved %d result(s), but ran into a problem writing up the answer. Please try again.", s.QueryResult.RowCount)
	}
	return GenericErrorMessage
}

func metadata(s *State) map[string]any {
	stages := make([]string, 0, len(s.Trail))
	for _, step := range s.Trail {
		stages = append(stages, string(step.Stage))
	}
	md := map[string]any{
		"stages": stages,
	}
	if s.IntentSource != "" {
		md["intent_source"] = s.IntentSource
	}
	if s.ContextualQuery != s.UserInput {
		md["contextualized"] = true
	}
	if s.Resolution != nil {
		md["resolution"] = s.Resolution.Resolution
		md["resolution_stats"] = s.Resolution.Stats
		if len(s.Resolution.Unresolved) > 0 {
			md["unresolved_terms"] = s.Resolution.Unresolved
		}
	}
	if s.Query != "" {
		md["query"] = s.Query
	}
	if s.QueryResult != nil {
		md["row_count"] = s.QueryResult.RowCount
		md["truncated"] = s.QueryResult.Truncated
		md["execution_time_ms"] = s.QueryResult.ExecutionTime.Milliseconds()
		md["format"] = string(ChooseFormat(s.QueryResult))
	}
	if len(s.MissingProjectInfo) > 0 {
		md["missing_project_info"] = s.MissingProjectInfo
	}
	if s.Intent == IntentResourceMatching && s.AvailableEmployees != nil {
		md["candidates"] = len(s.AvailableEmployees)
	}
	return md
}

// history loads the session, creating it on first use. Store failures are
// logged and the request proceeds without history.
func (e *Engine) history(req Request) []session.Message {
	if e.sessions == nil {
		return nil
	}
	conv, err := session.GetOrCreate(e.sessions, req.SessionID, req.UserID, req.Context)
	if err != nil {
		e.logger.Warn("failed to load session", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		return nil
	}
	return conv.History
}

// remember appends the user turn and the answer to the session history.
func (e *Engine) remember(req Request, res *Result) {
	if e.sessions == nil {
		return
	}
	now := time.Now().UTC()
	for _, msg := range []session.Message{
		{Role: session.RoleUser, Content: req.Input, Timestamp: now},
		{Role: session.RoleAssistant, Content: res.Response, Timestamp: now},
	} {
		if err := e.sessions.AppendHistory(req.SessionID, msg); err != nil {
			e.logger.Warn("failed to append history", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
			return
		}
	}
}

// Stream runs the request and then streams the answer. A data answer is
// rephrased by the model; anything else is replayed as a single token.
func (e *Engine) Stream(ctx context.Context, req Request) (*Result, <-chan llm.StreamEvent, error) {
	res, err := e.Run(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	if e.model != nil && res.Stage == StageCompleted && res.Error == nil && res.Intent == IntentDatabaseQuery {
		prompt, err := prompts.Render("response.json", "stream-answer", map[string]string{
			"Query":  req.Input,
			"Answer": res.Response,
		})
		if err == nil {
			return res, e.model.StreamCompletion(ctx, prompt), nil
		}
		e.logger.Warn("failed to render stream prompt", slog.String("error", err.Error()))
	}

	events := make(chan llm.StreamEvent, 2)
	events <- llm.StreamEvent{Token: res.Response}
	events <- llm.StreamEvent{Done: true}
	close(events)
	return res, events, nil
}
