package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/resourcewise/internal/observability"
	"github.com/jonathan/resourcewise/internal/prompts"
	"github.com/jonathan/resourcewise/internal/schemas"
	"github.com/jonathan/resourcewise/internal/types"
)

// maxResultChars caps the serialized results handed to the summarizer.
const maxResultChars = 12000

// Assistant implements LanguageModel on top of a provider Client.
type Assistant struct {
	client  Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewAssistant wraps client. A zero timeout uses DefaultTimeout.
func NewAssistant(client Client, timeout time.Duration, logger *slog.Logger) *Assistant {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{client: client, timeout: timeout, logger: logger}
}

// Classify implements LanguageModel.
func (a *Assistant) Classify(ctx context.Context, text string) (*Classification, error) {
	prompt, err := prompts.Render("fuzzy.json", "classify-terms", map[string]string{"Query": text})
	if err != nil {
		return nil, err
	}

	var out Classification
	if err := a.generateJSON(ctx, "classify", prompt, TierLite, schemas.Classification, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassifyIntent implements LanguageModel.
func (a *Assistant) ClassifyIntent(ctx context.Context, text string, history []string) (*IntentResult, error) {
	recent := "(none)"
	if len(history) > 0 {
		recent = strings.Join(history, "\n")
	}
	prompt, err := prompts.Render("intent.json", "classify-intent", map[string]string{
		"Query":   text,
		"History": recent,
	})
	if err != nil {
		return nil, err
	}

	var out IntentResult
	if err := a.generateJSON(ctx, "classify_intent", prompt, TierLite, schemas.Intent, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractProject implements LanguageModel.
func (a *Assistant) ExtractProject(ctx context.Context, text string) (*types.ProjectRequirement, error) {
	description, err := prompts.Get("project.json", "extract-project")
	if err != nil {
		return nil, err
	}
	prompt := BuildExtractionPrompt(ProjectDetailsSchema(description), text)

	var out types.ProjectRequirement
	if err := a.generateJSON(ctx, "extract_project", prompt, TierLite, schemas.ProjectDetails, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SynthesizeQuery implements LanguageModel.
func (a *Assistant) SynthesizeQuery(ctx context.Context, question, schema string, hints map[string][]string) (string, error) {
	prompt, err := prompts.Render("query.json", "synthesize-sql", map[string]string{
		"Query":  question,
		"Schema": schema,
		"Hints":  FormatHints(hints),
	})
	if err != nil {
		return "", err
	}

	var query string
	err = a.observe(ctx, "synthesize_query", func(ctx context.Context) error {
		text, err := a.client.GenerateContent(ctx, prompt, TierStandard)
		if err != nil {
			return &APICallError{Operation: "synthesize_query", Cause: err}
		}
		query = CleanSQL(text)
		if query == "" {
			return &ParseError{Operation: "synthesize_query", Reply: text, Cause: fmt.Errorf("empty query")}
		}
		return nil
	})
	return query, err
}

// Summarize implements LanguageModel.
func (a *Assistant) Summarize(ctx context.Context, results any, originalQuery string, queryContext map[string]any) (string, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to serialize results: %w", err)
	}
	serialized := string(data)
	if len(serialized) > maxResultChars {
		serialized = serialized[:maxResultChars] + " …(truncated)"
	}

	prompt, err := prompts.Render("response.json", "summarize-results", map[string]string{
		"Query":   originalQuery,
		"Context": formatContext(queryContext),
		"Results": serialized,
	})
	if err != nil {
		return "", err
	}

	var summary string
	err = a.observe(ctx, "summarize", func(ctx context.Context) error {
		text, err := a.client.GenerateContent(ctx, prompt, TierStandard)
		if err != nil {
			return &APICallError{Operation: "summarize", Cause: err}
		}
		summary = strings.TrimSpace(text)
		return nil
	})
	return summary, err
}

// StreamCompletion implements LanguageModel. The stream is bounded by the call timeout.
func (a *Assistant) StreamCompletion(ctx context.Context, prompt string) <-chan StreamEvent {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	upstream := a.client.StreamContent(ctx, prompt, TierStandard)
	out := make(chan StreamEvent)

	go func() {
		defer cancel()
		defer close(out)
		start := time.Now()
		status := "ok"
		defer func() { observability.RecordLLMCall("stream", status, time.Since(start)) }()

		for ev := range upstream {
			if ev.Err != nil {
				status = "error"
			}
			if !sendEvent(ctx, out, ev) || ev.Terminal() {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			status = "error"
			select {
			case out <- StreamEvent{Err: err}:
			default:
			}
		}
	}()

	return out
}

func (a *Assistant) generateJSON(ctx context.Context, op, prompt string, tier ModelTier, schema string, out any) error {
	return a.observe(ctx, op, func(ctx context.Context) error {
		reply, err := a.client.GenerateJSON(ctx, prompt, tier)
		if err != nil {
			return &APICallError{Operation: op, Cause: err}
		}
		body := ExtractJSONObject(reply)
		if err := schemas.Validate(schema, body); err != nil {
			return &ParseError{Operation: op, Reply: reply, Cause: err}
		}
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return &ParseError{Operation: op, Reply: reply, Cause: err}
		}
		return nil
	})
}

// observe runs fn under the call timeout with a span, metrics and a debug log line.
func (a *Assistant) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "llm."+op, attribute.String("operation", op))

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
		a.logger.Warn("language model call failed",
			slog.String("operation", op),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	} else {
		a.logger.Debug("language model call", slog.String("operation", op), slog.Duration("elapsed", elapsed))
	}
	observability.RecordLLMCall(op, status, elapsed)
	return err
}

// FormatHints renders a resolution map as "term → a, b" lines, sorted by term.
func FormatHints(hints map[string][]string) string {
	if len(hints) == 0 {
		return "(none)"
	}
	terms := make([]string, 0, len(hints))
	for term := range hints {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	lines := make([]string, 0, len(terms))
	for _, term := range terms {
		lines = append(lines, fmt.Sprintf("- %q → %s", term, strings.Join(hints[term], ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatContext(ctx map[string]any) string {
	if len(ctx) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, ctx[k]))
	}
	return strings.Join(lines, "\n")
}
