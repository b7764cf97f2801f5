package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/resourcewise/internal/types"
)

// Stub is a deterministic LanguageModel for tests and offline runs.
// Each operation uses its Fn hook when set; otherwise it falls back to a fixed behaviour:
// Classify, ClassifyIntent, ExtractProject and SynthesizeQuery return ErrUnavailable,
// Summarize returns a one-line count, and StreamCompletion echoes the prompt word by word.
type Stub struct {
	ClassifyFn       func(ctx context.Context, text string) (*Classification, error)
	ClassifyIntentFn func(ctx context.Context, text string, history []string) (*IntentResult, error)
	ExtractProjectFn func(ctx context.Context, text string) (*types.ProjectRequirement, error)
	SynthesizeFn     func(ctx context.Context, question, schema string, hints map[string][]string) (string, error)
	SummarizeFn      func(ctx context.Context, results any, originalQuery string, context map[string]any) (string, error)

	// Delay is applied to every call before the hook runs; a cancelled context aborts it.
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

// Calls returns the operations invoked so far, in order.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Stub) record(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()

	if s.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Classify implements LanguageModel.
func (s *Stub) Classify(ctx context.Context, text string) (*Classification, error) {
	if err := s.record(ctx, "classify"); err != nil {
		return nil, err
	}
	if s.ClassifyFn != nil {
		return s.ClassifyFn(ctx, text)
	}
	return nil, ErrUnavailable
}

// ClassifyIntent implements LanguageModel.
func (s *Stub) ClassifyIntent(ctx context.Context, text string, history []string) (*IntentResult, error) {
	if err := s.record(ctx, "classify_intent"); err != nil {
		return nil, err
	}
	if s.ClassifyIntentFn != nil {
		return s.ClassifyIntentFn(ctx, text, history)
	}
	return nil, ErrUnavailable
}

// ExtractProject implements LanguageModel.
func (s *Stub) ExtractProject(ctx context.Context, text string) (*types.ProjectRequirement, error) {
	if err := s.record(ctx, "extract_project"); err != nil {
		return nil, err
	}
	if s.ExtractProjectFn != nil {
		return s.ExtractProjectFn(ctx, text)
	}
	return nil, ErrUnavailable
}

// SynthesizeQuery implements LanguageModel.
func (s *Stub) SynthesizeQuery(ctx context.Context, question, schema string, hints map[string][]string) (string, error) {
	if err := s.record(ctx, "synthesize_query"); err != nil {
		return "", err
	}
	if s.SynthesizeFn != nil {
		return s.SynthesizeFn(ctx, question, schema, hints)
	}
	return "", ErrUnavailable
}

// Summarize implements LanguageModel.
func (s *Stub) Summarize(ctx context.Context, results any, originalQuery string, queryContext map[string]any) (string, error) {
	if err := s.record(ctx, "summarize"); err != nil {
		return "", err
	}
	if s.SummarizeFn != nil {
		return s.SummarizeFn(ctx, results, originalQuery, queryContext)
	}
	if rows, ok := results.([]map[string]any); ok {
		return fmt.Sprintf("Found %d result(s) for %q.", len(rows), originalQuery), nil
	}
	return fmt.Sprintf("Here is what I found for %q.", originalQuery), nil
}

// StreamCompletion implements LanguageModel by echoing the prompt one word per event.
func (s *Stub) StreamCompletion(ctx context.Context, prompt string) <-chan StreamEvent {
	// One slot so the terminal error is delivered without a reader.
	events := make(chan StreamEvent, 1)
	go func() {
		defer close(events)
		if err := s.record(ctx, "stream"); err != nil {
			events <- StreamEvent{Err: err}
			return
		}
		words := strings.Fields(prompt)
		for i, w := range words {
			if i < len(words)-1 {
				w += " "
			}
			if !sendEvent(ctx, events, StreamEvent{Token: w}) {
				return
			}
		}
		sendEvent(ctx, events, StreamEvent{Done: true})
	}()
	return events
}
