// Package workflow routes a user utterance through intent detection, query synthesis,
// data retrieval, team matching and response generation.
package workflow

import (
	"fmt"
	"time"
)

// Stage is a node of the workflow graph.
type Stage string

// Workflow stages.
const (
	StageIntentClassification  Stage = "intent_classification"
	StageProjectInfoExtraction Stage = "project_info_extraction"
	StageQueryGeneration       Stage = "query_generation"
	StageDatabaseExecution     Stage = "database_execution"
	StageResponseGeneration    Stage = "response_generation"
	StageResourceMatching      Stage = "resource_matching"

	StageCompleted          Stage = "completed"
	StageCompletedWithError Stage = "completed_with_error"
	StageFailed             Stage = "error"
)

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageCompletedWithError, StageFailed:
		return true
	}
	return false
}

// Phase marks progress of a resource matching request across its two
// passes through response generation.
type Phase string

// Matching phases.
const (
	PhaseNone               Phase = ""
	PhaseEmployeesRetrieved Phase = "employees_retrieved"
	PhaseMatchingCompleted  Phase = "matching_completed"
)

// Transitions lists the successors each stage may route to on success.
var Transitions = map[Stage][]Stage{
	StageIntentClassification:  {StageProjectInfoExtraction, StageQueryGeneration, StageCompleted},
	StageProjectInfoExtraction: {StageResponseGeneration, StageQueryGeneration},
	StageQueryGeneration:       {StageDatabaseExecution},
	StageDatabaseExecution:     {StageResponseGeneration},
	StageResponseGeneration:    {StageResourceMatching, StageCompleted, StageCompletedWithError},
	StageResourceMatching:      {StageResponseGeneration},
}

// Step is one visited stage.
type Step struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed,omitempty"`
}

func allowed(from, to Stage) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidWalk checks that trail starts at intent classification, follows
// Transitions, and ends on its only terminal stage. A failed step must be
// followed by response generation, or by completed_with_error when response
// generation itself failed. StageFailed may follow any stage.
func ValidWalk(trail []Step) error {
	if len(trail) == 0 {
		return fmt.Errorf("empty trail")
	}
	if trail[0].Stage != StageIntentClassification {
		return fmt.Errorf("walk starts at %s", trail[0].Stage)
	}
	last := trail[len(trail)-1].Stage
	if !last.Terminal() {
		return fmt.Errorf("walk ends at non-terminal stage %s", last)
	}

	for i := 1; i < len(trail); i++ {
		prev, cur := trail[i-1], trail[i].Stage
		if prev.Stage.Terminal() {
			return fmt.Errorf("step %d: %s follows terminal stage %s", i, cur, prev.Stage)
		}
		if cur == StageFailed {
			continue
		}
		switch {
		case prev.Failed && prev.Stage == StageResponseGeneration:
			if cur != StageCompletedWithError {
				return fmt.Errorf("step %d: failed response generation must end as %s, got %s", i, StageCompletedWithError, cur)
			}
		case prev.Failed:
			if cur != StageResponseGeneration {
				return fmt.Errorf("step %d: failure in %s must route to %s, got %s", i, prev.Stage, StageResponseGeneration, cur)
			}
		case !allowed(prev.Stage, cur):
			return fmt.Errorf("step %d: no transition %s -> %s", i, prev.Stage, cur)
		}
	}
	return nil
}
