package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/fuzzy"
	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

type executorFunc func(ctx context.Context, query string) (*db.QueryResult, error)

func (f executorFunc) Execute(ctx context.Context, query string) (*db.QueryResult, error) {
	return f(ctx, query)
}

type candidateRepo struct {
	candidates []types.EmployeeCandidate
	err        error
	requested  []string
}

func (r *candidateRepo) Candidates(_ context.Context, designations []string) ([]types.EmployeeCandidate, error) {
	r.requested = designations
	return r.candidates, r.err
}

type staticResolver struct {
	result *fuzzy.Result
}

func (r staticResolver) ResolveQuery(context.Context, string) (*fuzzy.Result, error) {
	return r.result, nil
}

type staticSchema string

func (s staticSchema) SchemaOrFallback(context.Context) string { return string(s) }

func intentStub(label string) *llm.Stub {
	return &llm.Stub{
		ClassifyIntentFn: func(context.Context, string, []string) (*llm.IntentResult, error) {
			return &llm.IntentResult{Intent: label}, nil
		},
	}
}

func twoRows() *db.QueryResult {
	return &db.QueryResult{
		Columns: []string{"name", "email"},
		Rows: []map[string]any{
			{"name": "Asha", "email": "asha@example.com"},
			{"name": "Ben", "email": "ben@example.com"},
		},
		RowCount: 2,
	}
}

func stages(res *Result) []string {
	return res.Metadata["stages"].([]string)
}

func runOK(t *testing.T, e *Engine, req Request) *Result {
	t.Helper()
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestRun_Greeting(t *testing.T) {
	stub := intentStub("GREETING")
	e := NewEngine(Deps{Model: stub})

	res := runOK(t, e, Request{Input: "hello"})

	assert.Equal(t, IntentGreeting, res.Intent)
	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, CannedReply(IntentGreeting), res.Response)
	assert.Nil(t, res.Error)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, []string{"intent_classification", "completed"}, stages(res))
	assert.Equal(t, []string{"classify_intent"}, stub.Calls())
}

func TestRun_RulesWithoutModel(t *testing.T) {
	res := runOK(t, NewEngine(Deps{}), Request{Input: "help"})
	assert.Equal(t, IntentHelpRequest, res.Intent)
	assert.Equal(t, SourceRules, res.Metadata["intent_source"])
}

func TestRun_ModelFailureFallsBackToRules(t *testing.T) {
	stub := &llm.Stub{}
	res := runOK(t, NewEngine(Deps{Model: stub}), Request{Input: "good morning"})
	assert.Equal(t, IntentGreeting, res.Intent)
	assert.Equal(t, SourceRules, res.Metadata["intent_source"])
}

func TestRun_DatabaseQuery(t *testing.T) {
	var gotHints map[string][]string
	var gotSchema string
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(_ context.Context, _ string, schema string, hints map[string][]string) (string, error) {
		gotHints, gotSchema = hints, schema
		return "```sql\nSELECT name, email FROM employees\n```", nil
	}
	stub.SummarizeFn = func(_ context.Context, results any, _ string, qctx map[string]any) (string, error) {
		assert.Len(t, results, 2)
		assert.Equal(t, "table", qctx["format"])
		return "Asha and Ben know React.", nil
	}

	var gotQuery string
	e := NewEngine(Deps{
		Model: stub,
		Resolver: staticResolver{result: &fuzzy.Result{
			Resolution: fuzzy.Resolution{"frontend": {"React"}},
			Unresolved: []string{"rockstar"},
			Stats:      fuzzy.Stats{Total: 2, Static: 1, Unresolved: 1},
		}},
		Schema: staticSchema("Table employees: name, email"),
		Executor: executorFunc(func(_ context.Context, q string) (*db.QueryResult, error) {
			gotQuery = q
			return twoRows(), nil
		}),
	})

	res := runOK(t, e, Request{Input: "Show me frontend rockstars"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, "Asha and Ben know React.", res.Response)
	assert.Nil(t, res.Error)
	assert.Equal(t, "SELECT name, email FROM employees", gotQuery)
	assert.Equal(t, "Table employees: name, email", gotSchema)
	assert.Equal(t, map[string][]string{"frontend": {"React"}, "rockstar": {"rockstar"}}, gotHints)
	assert.Equal(t, 2, res.Metadata["row_count"])
	assert.Equal(t, []string{"rockstar"}, res.Metadata["unresolved_terms"])
	assert.Equal(t, []string{"intent_classification", "query_generation", "database_execution", "response_generation", "completed"}, stages(res))
}

func TestRun_DatabaseTimeoutIsExplained(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		return "SELECT * FROM employees", nil
	}
	e := NewEngine(Deps{
		Model: stub,
		Executor: executorFunc(func(context.Context, string) (*db.QueryResult, error) {
			return nil, &db.ExecutionError{Category: db.CategoryTimeout, Message: "query timed out", Cause: context.DeadlineExceeded}
		}),
	})

	res := runOK(t, e, Request{Input: "List every allocation ever"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, db.FriendlyMessage(db.CategoryTimeout), res.Response)
	assert.Contains(t, res.Response, "too long")
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeDatabase, res.Error.Code)
	assert.Equal(t, db.CategoryTimeout, res.Error.Category)
	assert.Equal(t, StageDatabaseExecution, res.Error.Stage)
	assert.NotContains(t, stub.Calls(), "summarize")
}

func TestRun_SummaryFailureFallsBackToFormatting(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		return "SELECT name, email FROM employees", nil
	}
	stub.SummarizeFn = func(context.Context, any, string, map[string]any) (string, error) {
		return "", llm.ErrUnavailable
	}
	e := NewEngine(Deps{Model: stub, Executor: executorFunc(func(context.Context, string) (*db.QueryResult, error) {
		return twoRows(), nil
	})})

	res := runOK(t, e, Request{Input: "Who are the employees?"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, FormatResult(twoRows()), res.Response)
	assert.Nil(t, res.Error)
}

func TestRun_QueryGenerationFailure(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		return "", errors.New("model overloaded")
	}
	e := NewEngine(Deps{Model: stub})

	res := runOK(t, e, Request{Input: "Show the skills matrix"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Contains(t, res.Response, "rephrase")
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeQueryGeneration, res.Error.Code)
	assert.Equal(t, []string{"intent_classification", "query_generation", "response_generation", "completed"}, stages(res))
}

func TestRun_NoDatabaseConfigured(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		return "SELECT 1", nil
	}
	res := runOK(t, NewEngine(Deps{Model: stub}), Request{Input: "Show employees"})
	assert.Equal(t, db.FriendlyMessage(db.CategoryConnection), res.Response)
}

func matchingProject() *types.ProjectRequirement {
	return &types.ProjectRequirement{
		Name:           "Apollo",
		DurationMonths: 6,
		StartingFrom:   "2025-07",
		SkillsRequired: []string{"Go", "Kafka"},
		ResourcesRequired: []types.ResourceRequirement{
			{ResourceType: "TL", ResourceCount: 1, RequiredAllocationPercentage: 50},
			{ResourceType: "Software Engineer", ResourceCount: 1},
		},
	}
}

func matchingStub(project *types.ProjectRequirement) *llm.Stub {
	stub := intentStub("RESOURCE_MATCHING")
	stub.ExtractProjectFn = func(context.Context, string) (*types.ProjectRequirement, error) {
		return project, nil
	}
	return stub
}

func TestRun_ResourceMatching(t *testing.T) {
	repo := &candidateRepo{candidates: []types.EmployeeCandidate{
		{ID: "t1", Name: "Tara", Designation: "Technical Lead", AvailablePercentage: 100,
			Skills: []types.EmployeeSkill{{SkillName: "Go", ExperienceMonths: 36, LastUsed: "Current"}}},
		{ID: "s1", Name: "Sam", Designation: "Senior Software Engineer", AvailablePercentage: 100,
			Skills: []types.EmployeeSkill{{SkillName: "Go", ExperienceMonths: 24, LastUsed: "Current"}, {SkillName: "Kafka", ExperienceMonths: 12, LastUsed: "Current"}}},
		{ID: "e1", Name: "Eve", Designation: "Software Engineer", AvailablePercentage: 100,
			Skills: []types.EmployeeSkill{{SkillName: "Kafka", ExperienceMonths: 24, LastUsed: "Current"}}},
	}}
	stub := matchingStub(matchingProject())
	e := NewEngine(Deps{Model: stub, Employees: repo, Vocabulary: vocabulary.MustDefault()})

	var events []ProgressEvent
	res := runOK(t, e, Request{
		Input:      "I need a team for Apollo: a TL at 50% and a software engineer, Go and Kafka, 6 months from July",
		OnProgress: func(ev ProgressEvent) { events = append(events, ev) },
	})

	assert.Equal(t, IntentResourceMatching, res.Intent)
	assert.Equal(t, StageCompleted, res.Stage)
	assert.Nil(t, res.Error)
	assert.Equal(t, []string{
		"intent_classification", "project_info_extraction", "query_generation", "database_execution",
		"response_generation", "resource_matching", "response_generation", "completed",
	}, stages(res))

	assert.Contains(t, repo.requested, "Technical Lead")
	assert.Contains(t, repo.requested, "Senior Software Engineer")
	assert.Contains(t, repo.requested, "Software Engineer")

	require.NotNil(t, res.Match)
	require.NotEmpty(t, res.Match.Combinations)
	for _, combo := range res.Match.Combinations {
		for id, total := range combo.AllocationByEmployee() {
			assert.LessOrEqual(t, total, 100, id)
		}
	}
	assert.Contains(t, res.Response, "**Option 1**")
	assert.Contains(t, res.Response, "Apollo")
	assert.NotContains(t, stub.Calls(), "synthesize_query")

	require.Len(t, events, 14)
	assert.Equal(t, ProgressEvent{SessionID: res.SessionID, Stage: StageIntentClassification, Status: ProgressStarted}, events[0])
	assert.Equal(t, StageResponseGeneration, events[13].Stage)
	assert.Equal(t, ProgressFinished, events[13].Status)
}

func TestRun_ResourceMatchingMissingInfo(t *testing.T) {
	stub := matchingStub(&types.ProjectRequirement{Name: "Apollo", SkillsRequired: []string{"Go"}})
	e := NewEngine(Deps{Model: stub, Employees: &candidateRepo{}})

	res := runOK(t, e, Request{Input: "Staff the Apollo project with Go people"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Contains(t, res.Response, "the duration in months")
	assert.Contains(t, res.Response, "when the project starts")
	assert.Contains(t, res.Response, "the roles needed")
	assert.NotContains(t, res.Response, "project name")
	assert.Equal(t, []string{"duration_months", "starting_from", "resources_required"}, res.Metadata["missing_project_info"])
	assert.Equal(t, []string{"intent_classification", "project_info_extraction", "response_generation", "completed"}, stages(res))
}

func TestRun_ResourceMatchingExtractionFailure(t *testing.T) {
	stub := intentStub("RESOURCE_MATCHING")
	res := runOK(t, NewEngine(Deps{Model: stub}), Request{Input: "build a team for me"})

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Contains(t, res.Response, "the project name")
	assert.Nil(t, res.Error)
}

func TestRun_MatchingGapIsExplained(t *testing.T) {
	stub := matchingStub(matchingProject())
	e := NewEngine(Deps{Model: stub, Employees: &candidateRepo{}, Vocabulary: vocabulary.MustDefault()})

	res := runOK(t, e, Request{Input: "I need a team for Apollo"})

	assert.Equal(t, StageCompleted, res.Stage)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeMatching, res.Error.Code)
	assert.Contains(t, res.Response, "couldn't assemble a team for Apollo")
	assert.Contains(t, res.Response, "Only 0 of 1 TL position(s) could be filled.")
	assert.Equal(t, []string{
		"intent_classification", "project_info_extraction", "query_generation", "database_execution",
		"response_generation", "resource_matching", "response_generation", "completed",
	}, stages(res))
}

func TestRun_PanicInResponseGeneration(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		return "SELECT name FROM employees", nil
	}
	e := NewEngine(Deps{Model: stub, Executor: executorFunc(func(context.Context, string) (*db.QueryResult, error) {
		return twoRows(), nil
	})})
	e.handlers[StageResponseGeneration] = HandlerFunc(func(context.Context, *State) error {
		panic("boom")
	})

	res := runOK(t, e, Request{Input: "Show employees"})

	assert.Equal(t, StageCompletedWithError, res.Stage)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInternal, res.Error.Code)
	assert.Equal(t, GenericErrorMessage, res.Error.Message)
	assert.Contains(t, res.Response, "I retrieved 2 result(s)")
}

func TestRun_PanicInEarlierStageIsRecovered(t *testing.T) {
	e := NewEngine(Deps{Model: intentStub("DATABASE_QUERY")})
	e.handlers[StageQueryGeneration] = HandlerFunc(func(context.Context, *State) error {
		panic("boom")
	})

	res := runOK(t, e, Request{Input: "Show employees"})

	assert.Equal(t, StageCompletedWithError, res.Stage)
	assert.Equal(t, GenericErrorMessage, res.Response)
	assert.Nil(t, res.Error, "internal failures are not exposed")
	assert.Equal(t, []string{"intent_classification", "query_generation", "response_generation", "completed_with_error"}, stages(res))
}

func TestRun_PanicInModelCallIsNotExposed(t *testing.T) {
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
		var m map[string]int
		m["boom"] = 1
		return "", nil
	}
	res := runOK(t, NewEngine(Deps{Model: stub}), Request{Input: "Show employees"})

	assert.Equal(t, StageCompletedWithError, res.Stage)
	assert.Equal(t, GenericErrorMessage, res.Response)
	assert.Nil(t, res.Error)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "panic")
	assert.NotContains(t, string(out), "nil map")
}

func TestRun_WalksAreValid(t *testing.T) {
	inputs := []string{"hello", "help", "Show employees", "I need a team for Apollo", "blorp"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			e := NewEngine(Deps{Model: &llm.Stub{}, Vocabulary: vocabulary.MustDefault()})
			s := newState("s1", in, nil, nil)
			e.walk(context.Background(), Request{SessionID: "s1", Input: in}, s)

			require.NoError(t, ValidWalk(s.Trail))
			require.True(t, s.CurrentStage.Terminal())
			assert.True(t, (s.Err == nil) != (s.Response == ""), "exactly one of Err or Response")
		})
	}
}

func TestRun_SessionHistoryAndFollowUps(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	var mu sync.Mutex
	var questions []string
	stub := intentStub("DATABASE_QUERY")
	stub.SynthesizeFn = func(_ context.Context, question string, _ string, _ map[string][]string) (string, error) {
		mu.Lock()
		questions = append(questions, question)
		mu.Unlock()
		return "SELECT name FROM employees", nil
	}
	e := NewEngine(Deps{Model: stub, Sessions: store, Executor: executorFunc(func(context.Context, string) (*db.QueryResult, error) {
		return twoRows(), nil
	})})

	first := runOK(t, e, Request{SessionID: "chat-1", Input: "Show me Python developers"})
	second := runOK(t, e, Request{SessionID: "chat-1", Input: "what about their skills?"})

	require.Len(t, questions, 2)
	assert.Equal(t, "Show me Python developers", questions[0])
	assert.True(t, strings.HasPrefix(questions[1], "Previous conversation:\nUser: Show me Python developers\nAssistant: "))
	assert.True(t, strings.HasSuffix(questions[1], "Current question: what about their skills?"))
	assert.Equal(t, true, second.Metadata["contextualized"])

	conv, err := store.Get("chat-1")
	require.NoError(t, err)
	require.Len(t, conv.History, 4)
	assert.Equal(t, session.RoleUser, conv.History[0].Role)
	assert.Equal(t, first.Response, conv.History[1].Content)
	assert.Equal(t, session.RoleAssistant, conv.History[3].Role)
}

func TestRun_InvalidRequests(t *testing.T) {
	e := NewEngine(Deps{})

	_, err := e.Run(context.Background(), Request{Input: "  "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.Run(context.Background(), Request{SessionID: "../etc/passwd", Input: "hello"})
	assert.ErrorIs(t, err, session.ErrInvalidID)
}

func TestStream(t *testing.T) {
	t.Run("canned replies replay as one token", func(t *testing.T) {
		res, events, err := NewEngine(Deps{}).Stream(context.Background(), Request{Input: "hello"})
		require.NoError(t, err)
		text, err := llm.Collect(events)
		require.NoError(t, err)
		assert.Equal(t, res.Response, text)
	})

	t.Run("data answers stream through the model", func(t *testing.T) {
		stub := intentStub("DATABASE_QUERY")
		stub.SynthesizeFn = func(context.Context, string, string, map[string][]string) (string, error) {
			return "SELECT name FROM employees", nil
		}
		stub.SummarizeFn = func(context.Context, any, string, map[string]any) (string, error) {
			return "Asha and Ben.", nil
		}
		e := NewEngine(Deps{Model: stub, Executor: executorFunc(func(context.Context, string) (*db.QueryResult, error) {
			return twoRows(), nil
		})})

		_, events, err := e.Stream(context.Background(), Request{Input: "Show employees"})
		require.NoError(t, err)
		text, err := llm.Collect(events)
		require.NoError(t, err)
		assert.Contains(t, text, "Asha and Ben.")
		assert.Contains(t, stub.Calls(), "stream")
	})
}
