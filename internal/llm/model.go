package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/jonathan/resourcewise/internal/types"
)

// Classification labels.
const (
	LabelFuzzy   = "fuzzy"
	LabelPrecise = "precise"
)

// Classification is the model's verdict on whether a question needs vocabulary resolution.
type Classification struct {
	Label      string   `json:"label"`
	Terms      []string `json:"terms"`
	Confidence float64  `json:"confidence,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// IsFuzzy reports whether the label is fuzzy.
func (c *Classification) IsFuzzy() bool {
	return c != nil && c.Label == LabelFuzzy
}

// IntentResult is the model's intent label for an utterance.
type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// StreamEvent is one element of a completion stream.
// Exactly one of Token, Done or Err is meaningful; Done and Err are terminal.
type StreamEvent struct {
	Token string
	Done  bool
	Err   error
}

// Terminal reports whether no further events follow.
func (e StreamEvent) Terminal() bool {
	return e.Done || e.Err != nil
}

// LanguageModel is the set of operations the workflow needs from a language model.
type LanguageModel interface {
	// Classify labels text fuzzy or precise and extracts the ambiguous terms.
	Classify(ctx context.Context, text string) (*Classification, error)
	// ClassifyIntent labels the user's intent given recent history.
	ClassifyIntent(ctx context.Context, text string, history []string) (*IntentResult, error)
	// ExtractProject pulls whatever staffing requirements the text states. Unknown fields stay zero.
	ExtractProject(ctx context.Context, text string) (*types.ProjectRequirement, error)
	// SynthesizeQuery writes a read-only query answering the question.
	SynthesizeQuery(ctx context.Context, question, schema string, hints map[string][]string) (string, error)
	// Summarize answers the original question from structured results.
	Summarize(ctx context.Context, results any, originalQuery string, context map[string]any) (string, error)
	// StreamCompletion streams a completion; the last event is Done or Err.
	StreamCompletion(ctx context.Context, prompt string) <-chan StreamEvent
}

// ErrStreamInterrupted is returned by Collect when a stream closes without a terminal event.
var ErrStreamInterrupted = errors.New("stream closed before completion")

// Collect drains a stream into a string. It returns the first error event.
func Collect(events <-chan StreamEvent) (string, error) {
	var out strings.Builder
	for ev := range events {
		if ev.Err != nil {
			return out.String(), ev.Err
		}
		if ev.Done {
			return out.String(), nil
		}
		out.WriteString(ev.Token)
	}
	return out.String(), ErrStreamInterrupted
}
