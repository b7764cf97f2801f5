package fuzzy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/observability"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// Stats counts terms by the tier that resolved them.
type Stats struct {
	Total      int `json:"total_terms"`
	Static     int `json:"static"`
	Fuzzy      int `json:"fuzzy"`
	Vector     int `json:"vector"`
	Unresolved int `json:"unresolved"`
}

// Rate is the share of terms that resolved.
func (s Stats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Total-s.Unresolved) / float64(s.Total)
}

// Result is the outcome of resolving one question.
type Result struct {
	Classification *llm.Classification `json:"classification,omitempty"`
	Source         string              `json:"source,omitempty"`
	Buckets        Buckets             `json:"buckets"`
	Resolution     Resolution          `json:"resolution"`
	Tiers          map[string]Tier     `json:"tiers"`
	Unresolved     []string            `json:"unresolved"`
	Stats          Stats               `json:"stats"`
}

// Resolver runs classification, partition and the tiered sub-resolvers.
type Resolver struct {
	vocab       *vocabulary.Vocabulary
	classifier  *Classifier
	designation TermResolver
	skill       TermResolver
	vector      TermResolver
	logger      *slog.Logger
}

// NewResolver wires the sub-resolvers. vector may be nil to disable the fallback tier.
// A nil classifier uses the rule set.
func NewResolver(vocab *vocabulary.Vocabulary, classifier *Classifier, designation, skill, vector TermResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewClassifier(nil, 0, logger)
	}
	return &Resolver{
		vocab:       vocab,
		classifier:  classifier,
		designation: designation,
		skill:       skill,
		vector:      vector,
		logger:      logger,
	}
}

// ResolveQuery classifies text and resolves its vague terms.
// A precise question yields an empty resolution.
func (r *Resolver) ResolveQuery(ctx context.Context, text string) (*Result, error) {
	classification, source := r.classifier.Classify(ctx, text)

	var terms []string
	if classification.IsFuzzy() {
		terms = classification.Terms
	}
	res, err := r.Resolve(ctx, terms)
	if err != nil {
		return nil, err
	}
	res.Classification = classification
	res.Source = source
	return res, nil
}

// Resolve resolves terms. Designation and skill tiers run concurrently; the vector
// tier then handles whatever neither resolved plus the unknown bucket.
func (r *Resolver) Resolve(ctx context.Context, terms []string) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "fuzzy.resolve", attribute.Int("fuzzy.terms", len(terms)))
	start := time.Now()
	defer func() { observability.EndSpan(span, err) }()

	buckets := Partition(terms, r.vocab)

	var designations, skills Outcomes
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := runTier(gctx, r.designation, buckets.Designation)
		designations = out
		return err
	})
	g.Go(func() error {
		out, err := runTier(gctx, r.skill, buckets.Skill)
		skills = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve terms: %w", err)
	}

	merged := make(Outcomes, len(terms))
	for k, v := range designations {
		merged[k] = v
	}
	for k, v := range skills {
		merged[k] = v
	}

	var remaining []string
	for _, t := range buckets.Designation {
		if _, ok := merged[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	for _, t := range buckets.Skill {
		if _, ok := merged[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	remaining = append(remaining, buckets.Unknown...)

	if len(remaining) > 0 && r.vector != nil && r.vocab.Settings.EnableVectorFallback {
		vectors, err := r.vector.Resolve(ctx, remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve terms by similarity: %w", err)
		}
		for k, v := range vectors {
			merged[k] = v
		}
	}

	res = r.assemble(buckets, merged)
	r.logger.Info("terms resolved",
		slog.Int("total", res.Stats.Total),
		slog.Int("static", res.Stats.Static),
		slog.Int("fuzzy", res.Stats.Fuzzy),
		slog.Int("vector", res.Stats.Vector),
		slog.Int("unresolved", res.Stats.Unresolved),
		slog.Duration("elapsed", time.Since(start)),
	)
	observability.RecordResolution(string(TierStatic), res.Stats.Static)
	observability.RecordResolution(string(TierFuzzy), res.Stats.Fuzzy)
	observability.RecordResolution(string(TierVector), res.Stats.Vector)
	observability.RecordResolution(string(TierUnresolved), res.Stats.Unresolved)
	return res, nil
}

func runTier(ctx context.Context, resolver TermResolver, terms []string) (Outcomes, error) {
	if resolver == nil || len(terms) == 0 {
		return Outcomes{}, nil
	}
	return resolver.Resolve(ctx, terms)
}

func (r *Resolver) assemble(buckets Buckets, outcomes Outcomes) *Result {
	all := buckets.All()
	res := &Result{
		Buckets:    buckets,
		Resolution: make(Resolution, len(outcomes)),
		Tiers:      make(map[string]Tier, len(all)),
		Unresolved: []string{},
		Stats:      Stats{Total: len(all)},
	}
	for _, term := range all {
		o, ok := outcomes[term]
		if !ok || len(o.Values) == 0 {
			res.Unresolved = append(res.Unresolved, term)
			res.Tiers[term] = TierUnresolved
			res.Stats.Unresolved++
			continue
		}
		res.Resolution[term] = o.Values
		res.Tiers[term] = o.Tier
		switch o.Tier {
		case TierStatic:
			res.Stats.Static++
		case TierFuzzy:
			res.Stats.Fuzzy++
		case TierVector:
			res.Stats.Vector++
		}
	}
	return res
}

// Build wires the standard tiers over the given collaborators. model, embedder
// and either directory may be nil; the corresponding tier then degrades.
func Build(vocab *vocabulary.Vocabulary, model llm.LanguageModel, classifyTimeout time.Duration, embedder Embedder, designations DesignationDirectory, skills SkillDirectory, logger *slog.Logger) *Resolver {
	var vector TermResolver
	if embedder != nil {
		vector = NewVectorResolver(embedder, designations, skills, vocab.Settings, logger)
	}
	return NewResolver(
		vocab,
		NewClassifier(model, classifyTimeout, logger),
		NewDesignationResolver(vocab, designations, logger),
		NewSkillResolver(vocab, skills, logger),
		vector,
		logger,
	)
}
