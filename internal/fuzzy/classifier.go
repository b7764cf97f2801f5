package fuzzy

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonathan/resourcewise/internal/llm"
)

// Classification sources.
const (
	SourceModel = "model"
	SourceRules = "rules"
)

// Classifier decides whether a question needs vocabulary resolution.
// The language model is asked first; any failure falls back to ClassifyRules.
type Classifier struct {
	model   llm.LanguageModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewClassifier creates a classifier. model may be nil to use rules only.
// A non-positive timeout leaves the caller's deadline in charge.
func NewClassifier(model llm.LanguageModel, timeout time.Duration, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, timeout: timeout, logger: logger}
}

// Classify labels text and returns the extracted terms together with the source that produced them.
// It never fails: model errors and malformed replies degrade to the rule set.
func (c *Classifier) Classify(ctx context.Context, text string) (*llm.Classification, string) {
	if c.model == nil {
		return ClassifyRules(text), SourceRules
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.model.Classify(callCtx, text)
	if err != nil || result == nil || (result.Label != llm.LabelFuzzy && result.Label != llm.LabelPrecise) {
		attrs := []any{slog.String("fallback", SourceRules)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		c.logger.Warn("classification failed, using rules", attrs...)
		return ClassifyRules(text), SourceRules
	}

	out := &llm.Classification{
		Label:      result.Label,
		Terms:      dedupe(result.Terms),
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	}
	if out.IsFuzzy() && len(out.Terms) == 0 {
		// fuzzy without terms gives the resolver nothing to work with
		out.Terms = ExtractTerms(text)
		if len(out.Terms) == 0 {
			out.Label = llm.LabelPrecise
		}
	}
	if !out.IsFuzzy() {
		out.Terms = []string{}
	}
	return out, SourceModel
}
