package fuzzy

import (
	"context"
	"log/slog"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// DesignationResolver resolves role vocabulary: static table, then singular form, then directory search.
type DesignationResolver struct {
	vocab     *vocabulary.Vocabulary
	directory DesignationDirectory
	logger    *slog.Logger
}

// NewDesignationResolver creates a resolver. directory may be nil to use the static table only.
func NewDesignationResolver(vocab *vocabulary.Vocabulary, directory DesignationDirectory, logger *slog.Logger) *DesignationResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DesignationResolver{vocab: vocab, directory: directory, logger: logger}
}

// Resolve implements TermResolver. Directory failures leave the term unresolved.
func (r *DesignationResolver) Resolve(ctx context.Context, terms []string) (Outcomes, error) {
	out := make(Outcomes, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if titles, ok := r.vocab.DesignationTitles(term); ok {
			out.set(term, titles, TierStatic)
			continue
		}
		if s, ok := singular(term); ok {
			if titles, ok := r.vocab.DesignationTitles(s); ok {
				out.set(term, titles, TierStatic)
				continue
			}
		}

		if r.directory == nil {
			continue
		}
		matches, err := r.directory.FuzzySearch(ctx, term, r.vocab.Settings.FuzzyThreshold, r.vocab.Settings.DesignationFuzzyLimit)
		if err != nil {
			r.logger.Warn("designation search failed",
				slog.String("term", term),
				slog.String("error", err.Error()),
			)
			continue
		}
		out.set(term, dedupe(types.MatchNames(matches)), TierFuzzy)
	}
	return out, nil
}
