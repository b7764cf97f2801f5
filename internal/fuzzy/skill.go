package fuzzy

import (
	"context"
	"log/slog"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// SkillResolver resolves skill vocabulary: category expansion, then directory search.
type SkillResolver struct {
	vocab     *vocabulary.Vocabulary
	directory SkillDirectory
	logger    *slog.Logger
}

// NewSkillResolver creates a resolver. directory may be nil, in which case
// category expansion is not filtered and no search runs.
func NewSkillResolver(vocab *vocabulary.Vocabulary, directory SkillDirectory, logger *slog.Logger) *SkillResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillResolver{vocab: vocab, directory: directory, logger: logger}
}

// Resolve implements TermResolver.
func (r *SkillResolver) Resolve(ctx context.Context, terms []string) (Outcomes, error) {
	out := make(Outcomes, len(terms))
	known, snapshotOK := r.snapshot(ctx)

	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if category, ok := r.vocab.CategoryOf(term); ok {
			skills := r.expand(category, known, snapshotOK)
			if len(skills) > 0 {
				out.set(term, skills, TierStatic)
				continue
			}
		}

		if r.directory == nil {
			continue
		}
		matches, err := r.directory.FuzzySearch(ctx, term, r.vocab.Settings.FuzzyThreshold, r.vocab.Settings.SkillFuzzyLimit)
		if err != nil {
			r.logger.Warn("skill search failed",
				slog.String("term", term),
				slog.String("error", err.Error()),
			)
			continue
		}
		out.set(term, dedupe(types.MatchNames(matches)), TierFuzzy)
	}
	return out, nil
}

// expand returns the category's skills that exist in the directory, capped.
func (r *SkillResolver) expand(category string, known map[string]string, filter bool) []string {
	limit := r.vocab.Settings.MaxResultsPerCategory
	var skills []string
	for _, s := range r.vocab.CategorySkills(category) {
		if len(skills) >= limit {
			break
		}
		if filter {
			canonical, ok := known[foldKey(s)]
			if !ok {
				continue
			}
			s = canonical
		}
		skills = append(skills, s)
	}
	return dedupe(skills)
}

// snapshot loads the directory's skill names keyed case-insensitively.
// ok is false when there is no directory to filter against.
func (r *SkillResolver) snapshot(ctx context.Context) (map[string]string, bool) {
	if r.directory == nil {
		return nil, false
	}
	names, err := r.directory.Skills(ctx)
	if err != nil {
		r.logger.Warn("skill snapshot failed, expanding categories unfiltered", slog.String("error", err.Error()))
		return nil, false
	}
	known := make(map[string]string, len(names))
	for _, n := range names {
		known[foldKey(n)] = n
	}
	return known, true
}
