package workflow

import (
	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/fuzzy"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/types"
)

// State is threaded through every handler of one request.
// When CurrentStage is terminal exactly one of Err or Response is set.
type State struct {
	SessionID string
	UserInput string
	// ContextualQuery is UserInput prefixed with recent history when the
	// utterance refers back to it; otherwise it equals UserInput.
	ContextualQuery string

	CurrentStage Stage
	Phase        Phase
	Intent       Intent
	// IntentSource is "model" or "rules".
	IntentSource string

	Context map[string]any
	History []session.Message

	ProjectDetails     *types.ProjectRequirement
	MissingProjectInfo []string

	Resolution *fuzzy.Result
	Query      string
	// Designations is the candidate filter for a matching request.
	Designations []string
	QueryResult  *db.QueryResult

	AvailableEmployees []types.EmployeeCandidate
	Match              *types.MatchResult
	TeamCombinations   []types.TeamCombination

	Response string
	Err      *StageError
	// Handled is the stage error that response generation already explained.
	Handled *StageError

	Trail []Step
}

func newState(sessionID, input string, context map[string]any, history []session.Message) *State {
	if context == nil {
		context = map[string]any{}
	}
	return &State{
		SessionID:       sessionID,
		UserInput:       input,
		ContextualQuery: input,
		CurrentStage:    StageIntentClassification,
		Context:         context,
		History:         history,
	}
}

// Request is one user utterance.
type Request struct {
	SessionID string
	UserID    string
	Input     string
	// Context is caller metadata stored with a new session.
	Context map[string]any
	// OnProgress, when set, receives an event as each stage starts and finishes.
	OnProgress ProgressCallback
}

// Result is the response to a Request.
type Result struct {
	SessionID string             `json:"session_id"`
	Response  string             `json:"response"`
	Intent    Intent             `json:"intent"`
	Stage     Stage              `json:"stage"`
	Error     *StageError        `json:"error,omitempty"`
	Match     *types.MatchResult `json:"match,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// ProgressEvent reports a stage boundary.
type ProgressEvent struct {
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Progress statuses.
const (
	ProgressStarted  = "started"
	ProgressFinished = "finished"
	ProgressFailed   = "failed"
)

// ProgressCallback is called as stages start and finish.
type ProgressCallback func(event ProgressEvent)

func emitProgress(req Request, stage Stage, status, message string) {
	if req.OnProgress != nil {
		req.OnProgress(ProgressEvent{SessionID: req.SessionID, Stage: stage, Status: status, Message: message})
	}
}
