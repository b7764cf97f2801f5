package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walkOf(stages ...Stage) []Step {
	out := make([]Step, len(stages))
	for i, s := range stages {
		out[i] = Step{Stage: s}
	}
	return out
}

func TestValidWalk(t *testing.T) {
	failedAt := func(trail []Step, i int) []Step {
		trail[i].Failed = true
		return trail
	}

	tests := []struct {
		name    string
		trail   []Step
		wantErr bool
	}{
		{"greeting", walkOf(StageIntentClassification, StageCompleted), false},
		{"data query", walkOf(StageIntentClassification, StageQueryGeneration, StageDatabaseExecution, StageResponseGeneration, StageCompleted), false},
		{"matching", walkOf(StageIntentClassification, StageProjectInfoExtraction, StageQueryGeneration, StageDatabaseExecution,
			StageResponseGeneration, StageResourceMatching, StageResponseGeneration, StageCompleted), false},
		{"missing project info", walkOf(StageIntentClassification, StageProjectInfoExtraction, StageResponseGeneration, StageCompleted), false},
		{"failure routes to response", failedAt(walkOf(StageIntentClassification, StageQueryGeneration, StageResponseGeneration, StageCompleted), 1), false},
		{"failed response ends with error", failedAt(walkOf(StageIntentClassification, StageQueryGeneration, StageDatabaseExecution, StageResponseGeneration, StageCompletedWithError), 3), false},
		{"explained internal failure", failedAt(walkOf(StageIntentClassification, StageQueryGeneration, StageResponseGeneration, StageCompletedWithError), 1), false},
		{"internal error from any stage", walkOf(StageIntentClassification, StageQueryGeneration, StageFailed), false},

		{"empty", nil, true},
		{"wrong start", walkOf(StageQueryGeneration, StageDatabaseExecution, StageResponseGeneration, StageCompleted), true},
		{"no terminal", walkOf(StageIntentClassification, StageQueryGeneration), true},
		{"skips database", walkOf(StageIntentClassification, StageQueryGeneration, StageResponseGeneration, StageCompleted), true},
		{"step after terminal", walkOf(StageIntentClassification, StageCompleted, StageQueryGeneration, StageCompleted), true},
		{"failure must route to response", failedAt(walkOf(StageIntentClassification, StageQueryGeneration, StageDatabaseExecution, StageResponseGeneration, StageCompleted), 1), true},
		{"failed response cannot complete", failedAt(walkOf(StageIntentClassification, StageQueryGeneration, StageDatabaseExecution, StageResponseGeneration, StageCompleted), 3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidWalk(tt.trail)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoute_FollowsTransitions(t *testing.T) {
	states := []*State{
		{CurrentStage: StageIntentClassification, Intent: IntentResourceMatching},
		{CurrentStage: StageIntentClassification, Intent: IntentDatabaseQuery},
		{CurrentStage: StageIntentClassification, Intent: IntentGreeting},
		{CurrentStage: StageProjectInfoExtraction, MissingProjectInfo: []string{"name"}},
		{CurrentStage: StageProjectInfoExtraction},
		{CurrentStage: StageQueryGeneration},
		{CurrentStage: StageDatabaseExecution},
		{CurrentStage: StageResponseGeneration, Intent: IntentResourceMatching, Phase: PhaseEmployeesRetrieved},
		{CurrentStage: StageResponseGeneration, Intent: IntentResourceMatching, Phase: PhaseMatchingCompleted},
		{CurrentStage: StageResponseGeneration, Intent: IntentDatabaseQuery},
		{CurrentStage: StageResponseGeneration, Intent: IntentDatabaseQuery, Handled: &StageError{Code: CodeInternal}},
		{CurrentStage: StageResourceMatching},
	}
	for _, s := range states {
		next := route(s)
		assert.Contains(t, Transitions[s.CurrentStage], next, "route from %s", s.CurrentStage)
	}
}

func TestEngine_HandlesEveryStage(t *testing.T) {
	e := NewEngine(Deps{})
	for stage := range Transitions {
		require.Contains(t, e.handlers, stage)
		assert.False(t, stage.Terminal())
	}
	for _, s := range []Stage{StageCompleted, StageCompletedWithError, StageFailed} {
		assert.True(t, s.Terminal())
	}
}
