package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/fuzzy"
	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// contextWindow is the number of history messages used for intent and follow-ups.
const contextWindow = 6

// Handler executes one stage against the request state.
type Handler interface {
	Handle(ctx context.Context, s *State) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *State) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, s *State) error {
	return f(ctx, s)
}

// TermResolver turns vague vocabulary in a question into concrete values.
type TermResolver interface {
	ResolveQuery(ctx context.Context, text string) (*fuzzy.Result, error)
}

// SchemaSource describes the queryable tables.
type SchemaSource interface {
	SchemaOrFallback(ctx context.Context) string
}

// -----------------------------------------------------------------------------
// Intent classification
// -----------------------------------------------------------------------------

// IntentClassifier labels the utterance, answers data-free intents directly and
// folds recent history into follow-up questions.
type IntentClassifier struct {
	model  llm.LanguageModel
	logger *slog.Logger
}

// NewIntentClassifier creates the classifier. A nil model uses keyword rules only.
func NewIntentClassifier(model llm.LanguageModel, logger *slog.Logger) *IntentClassifier {
	return &IntentClassifier{model: model, logger: orDefault(logger)}
}

// Handle implements Handler.
func (h *IntentClassifier) Handle(ctx context.Context, s *State) error {
	recent := recentHistory(s.History, contextWindow)
	s.Intent, s.IntentSource = h.classify(ctx, s.UserInput, historyLines(recent))

	if len(recent) > 0 && NeedsContext(s.UserInput) {
		s.ContextualQuery = contextualize(s.UserInput, recent)
	}
	if !s.Intent.RequiresData() {
		s.Response = CannedReply(s.Intent)
	}

	h.logger.Debug("intent classified",
		slog.String("session_id", s.SessionID),
		slog.String("intent", string(s.Intent)),
		slog.String("source", s.IntentSource),
	)
	return nil
}

func (h *IntentClassifier) classify(ctx context.Context, text string, history []string) (Intent, string) {
	if h.model != nil {
		res, err := h.model.ClassifyIntent(ctx, text, history)
		if err == nil && res != nil {
			if intent, ok := ParseIntent(res.Intent); ok {
				return intent, SourceModel
			}
			h.logger.Warn("unrecognised intent label", slog.String("label", res.Intent))
		} else if err != nil {
			h.logger.Warn("intent model failed, using rules", slog.String("error", err.Error()))
		}
	}
	return RuleIntent(text), SourceRules
}

func recentHistory(history []session.Message, n int) []session.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func historyLines(msgs []session.Message) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, speaker(m.Role)+": "+m.Content)
	}
	return lines
}

func speaker(role string) string {
	if role == session.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func contextualize(input string, recent []session.Message) string {
	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, line := range historyLines(recent) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nCurrent question: ")
	sb.WriteString(input)
	return sb.String()
}

// -----------------------------------------------------------------------------
// Project details
// -----------------------------------------------------------------------------

// ProjectInfoExtractor pulls staffing requirements out of the utterance and
// lists whatever is still missing.
type ProjectInfoExtractor struct {
	model  llm.LanguageModel
	logger *slog.Logger
}

// NewProjectInfoExtractor creates the extractor.
func NewProjectInfoExtractor(model llm.LanguageModel, logger *slog.Logger) *ProjectInfoExtractor {
	return &ProjectInfoExtractor{model: model, logger: orDefault(logger)}
}

// Handle implements Handler. An extraction failure leaves every field missing.
func (h *ProjectInfoExtractor) Handle(ctx context.Context, s *State) error {
	var project *types.ProjectRequirement
	if h.model != nil {
		p, err := h.model.ExtractProject(ctx, s.ContextualQuery)
		if err != nil {
			h.logger.Warn("project extraction failed", slog.String("session_id", s.SessionID), slog.String("error", err.Error()))
		} else {
			project = normalizeProject(p)
		}
	}

	s.ProjectDetails = project
	s.MissingProjectInfo = project.MissingFields()
	if len(s.MissingProjectInfo) == 0 {
		if err := project.Validate(); err != nil {
			s.MissingProjectInfo = invalidFields(err)
		}
	}
	return nil
}

func normalizeProject(p *types.ProjectRequirement) *types.ProjectRequirement {
	if p == nil {
		return nil
	}
	out := *p
	out.Name = strings.TrimSpace(p.Name)
	out.StartingFrom = strings.TrimSpace(p.StartingFrom)

	out.SkillsRequired = nil
	for _, skill := range p.SkillsRequired {
		if skill = strings.TrimSpace(skill); skill != "" {
			out.SkillsRequired = append(out.SkillsRequired, skill)
		}
	}
	out.ResourcesRequired = nil
	for _, r := range p.ResourcesRequired {
		r.ResourceType = strings.TrimSpace(r.ResourceType)
		if r.ResourceType != "" && r.ResourceCount > 0 {
			out.ResourcesRequired = append(out.ResourcesRequired, r)
		}
	}
	return &out
}

// invalidFields maps validation failures to project field names.
func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{types.FieldName, types.FieldDuration, types.FieldStartingFrom, types.FieldSkillsRequired, types.FieldResourcesRequired}
	}
	fields := map[string]string{
		"Name":                         types.FieldName,
		"DurationMonths":               types.FieldDuration,
		"StartingFrom":                 types.FieldStartingFrom,
		"SkillsRequired":               types.FieldSkillsRequired,
		"ResourcesRequired":            types.FieldResourcesRequired,
		"ResourceType":                 types.FieldResourcesRequired,
		"ResourceCount":                types.FieldResourcesRequired,
		"RequiredAllocationPercentage": types.FieldResourcesRequired,
	}
	var out []string
	seen := map[string]bool{}
	for _, fe := range verrs {
		name, ok := fields[fe.StructField()]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// -----------------------------------------------------------------------------
// Query generation
// -----------------------------------------------------------------------------

// QueryGenerator writes the read-only query for a data question. For a matching
// request it instead derives the designations to load candidates for.
type QueryGenerator struct {
	model    llm.LanguageModel
	resolver TermResolver
	schema   SchemaSource
	vocab    *vocabulary.Vocabulary
	logger   *slog.Logger
}

// NewQueryGenerator creates the generator. resolver and schema may be nil.
func NewQueryGenerator(model llm.LanguageModel, resolver TermResolver, schema SchemaSource, vocab *vocabulary.Vocabulary, logger *slog.Logger) *QueryGenerator {
	return &QueryGenerator{model: model, resolver: resolver, schema: schema, vocab: vocab, logger: orDefault(logger)}
}

// Handle implements Handler.
func (h *QueryGenerator) Handle(ctx context.Context, s *State) error {
	if s.Intent == IntentResourceMatching {
		s.Designations = designationsFor(s.ProjectDetails, h.vocab)
		return nil
	}
	if h.model == nil {
		return &StageError{Code: CodeQueryGeneration, Message: "no language model configured"}
	}

	// Term resolution and schema introspection are independent; both degrade rather than fail.
	var (
		resolved *fuzzy.Result
		schema   = db.FallbackSchema
	)
	g, gctx := errgroup.WithContext(ctx)
	if h.resolver != nil {
		g.Go(func() error {
			res, err := h.resolver.ResolveQuery(gctx, s.UserInput)
			if err != nil {
				h.logger.Warn("term resolution failed", slog.String("session_id", s.SessionID), slog.String("error", err.Error()))
				return nil
			}
			resolved = res
			return nil
		})
	}
	if h.schema != nil {
		g.Go(func() error {
			schema = h.schema.SchemaOrFallback(gctx)
			return nil
		})
	}
	_ = g.Wait()
	s.Resolution = resolved

	query, err := h.model.SynthesizeQuery(ctx, s.ContextualQuery, schema, hintsFrom(resolved))
	if err != nil {
		return &StageError{Code: CodeQueryGeneration, Message: "failed to generate query", Cause: err}
	}
	query = llm.CleanSQL(query)
	if query == "" {
		return &StageError{Code: CodeQueryGeneration, Message: "language model returned an empty query"}
	}
	s.Query = query
	return nil
}

// hintsFrom renders a resolution as synthesis hints. Unresolved terms map to themselves.
func hintsFrom(res *fuzzy.Result) map[string][]string {
	if res == nil {
		return nil
	}
	hints := make(map[string][]string, len(res.Resolution)+len(res.Unresolved))
	for term, values := range res.Resolution {
		hints[term] = values
	}
	for _, term := range res.Unresolved {
		if _, ok := hints[term]; !ok {
			hints[term] = []string{term}
		}
	}
	return hints
}

// designationsFor lists every designation that can fill one of the project's roles.
func designationsFor(project *types.ProjectRequirement, vocab *vocabulary.Vocabulary) []string {
	if project == nil {
		return nil
	}
	set := map[string]bool{}
	for _, r := range project.ResourcesRequired {
		set[r.ResourceType] = true
		if vocab != nil {
			for _, d := range vocab.AcceptedDesignations(r.ResourceType) {
				set[d] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// Database execution
// -----------------------------------------------------------------------------

// DatabaseStage runs the generated query, or loads the candidate pool for a
// matching request.
type DatabaseStage struct {
	executor  db.QueryExecutor
	employees db.EmployeeRepository
	logger    *slog.Logger
}

// NewDatabaseStage creates the stage. Either dependency may be nil when unused.
func NewDatabaseStage(executor db.QueryExecutor, employees db.EmployeeRepository, logger *slog.Logger) *DatabaseStage {
	return &DatabaseStage{executor: executor, employees: employees, logger: orDefault(logger)}
}

func errNoDatabase() *StageError {
	return &StageError{Code: CodeDatabase, Message: "no database configured", Category: db.CategoryConnection}
}

// Handle implements Handler.
func (h *DatabaseStage) Handle(ctx context.Context, s *State) error {
	if s.Intent == IntentResourceMatching {
		if h.employees == nil {
			return errNoDatabase()
		}
		candidates, err := h.employees.Candidates(ctx, s.Designations)
		if err != nil {
			return &StageError{Code: CodeDatabase, Message: "failed to load candidates", Category: db.CategoryConnection, Cause: err}
		}
		s.AvailableEmployees = candidates
		s.Phase = PhaseEmployeesRetrieved
		return nil
	}

	if h.executor == nil {
		return errNoDatabase()
	}
	result, err := h.executor.Execute(ctx, s.Query)
	if err != nil {
		return err
	}
	s.QueryResult = result
	return nil
}

// -----------------------------------------------------------------------------
// Resource matching
// -----------------------------------------------------------------------------

// ResourceMatcher proposes teams from the loaded candidate pool.
type ResourceMatcher struct {
	searcher *matching.Searcher
}

// NewResourceMatcher creates the matcher.
func NewResourceMatcher(searcher *matching.Searcher) *ResourceMatcher {
	return &ResourceMatcher{searcher: searcher}
}

// Handle implements Handler. Finding no team at all is a MATCHING_ERROR.
func (h *ResourceMatcher) Handle(_ context.Context, s *State) error {
	if s.ProjectDetails == nil {
		return &StageError{Code: CodeMatching, Message: "no project details to match against"}
	}
	result, err := h.searcher.Search(s.ProjectDetails, s.AvailableEmployees)
	if err != nil {
		return &StageError{Code: CodeMatching, Message: "team search failed", Cause: err}
	}
	s.Match = result
	s.TeamCombinations = result.Combinations
	if len(result.Combinations) == 0 {
		return &StageError{Code: CodeMatching, Message: fmt.Sprintf("no team could be assembled from %d candidates", len(s.AvailableEmployees))}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Response generation
// -----------------------------------------------------------------------------

// ResponseGenerator writes the user-facing answer. Data answers are summarised
// by the model and fall back to deterministic formatting.
type ResponseGenerator struct {
	model  llm.LanguageModel
	logger *slog.Logger
}

// NewResponseGenerator creates the generator. A nil model always formats.
func NewResponseGenerator(model llm.LanguageModel, logger *slog.Logger) *ResponseGenerator {
	return &ResponseGenerator{model: model, logger: orDefault(logger)}
}

// Handle implements Handler.
func (h *ResponseGenerator) Handle(ctx context.Context, s *State) error {
	if s.Err != nil {
		s.Response = explain(s)
		s.Handled, s.Err = s.Err, nil
		if s.Phase == PhaseEmployeesRetrieved {
			s.Phase = PhaseMatchingCompleted
		}
		return nil
	}

	switch {
	case s.Intent == IntentResourceMatching:
		h.matchingResponse(s)
	case s.QueryResult != nil:
		h.dataResponse(ctx, s)
	case s.Response == "":
		s.Response = CannedReply(s.Intent)
	}
	return nil
}

func (h *ResponseGenerator) matchingResponse(s *State) {
	switch {
	case len(s.MissingProjectInfo) > 0:
		s.Response = MissingInfoMessage(s.MissingProjectInfo)
	case s.Phase == PhaseEmployeesRetrieved && s.Match == nil:
		s.Response = fmt.Sprintf("Found %d candidate employee(s). Putting together team options…", len(s.AvailableEmployees))
	default:
		s.Phase = PhaseMatchingCompleted
		s.Response = FormatMatch(s.ProjectDetails, s.Match)
	}
}

func (h *ResponseGenerator) dataResponse(ctx context.Context, s *State) {
	formatted := FormatResult(s.QueryResult)
	if h.model == nil {
		s.Response = formatted
		return
	}

	summary, err := h.model.Summarize(ctx, s.QueryResult.Rows, s.UserInput, map[string]any{
		"row_count": s.QueryResult.RowCount,
		"truncated": s.QueryResult.Truncated,
		"format":    string(ChooseFormat(s.QueryResult)),
		"formatted": formatted,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			h.logger.Warn("summary failed, using formatted results", slog.String("session_id", s.SessionID), slog.String("error", err.Error()))
		}
		s.Response = formatted
		return
	}
	s.Response = strings.TrimSpace(summary)
	if s.QueryResult.Truncated {
		s.Response += "\n\n" + truncationNote(s.QueryResult.RowCount)
	}
}

// explain turns a recorded stage error into the user-facing message.
func explain(s *State) string {
	switch s.Err.Code {
	case CodeDatabase:
		if s.Err.Category == "" {
			return GenericErrorMessage
		}
		return db.FriendlyMessage(s.Err.Category)
	case CodeQueryGeneration:
		return "I couldn't work out how to look that up. Could you rephrase the question, " +
			"for example by naming the skill, designation or project you're interested in?"
	case CodeMatching:
		return MatchingGapMessage(s.ProjectDetails, s.Match)
	default:
		return GenericErrorMessage
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
