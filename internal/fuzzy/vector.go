package fuzzy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// VectorResolver resolves terms by embedding similarity against both directories.
type VectorResolver struct {
	embedder     Embedder
	designations DesignationDirectory
	skills       SkillDirectory
	settings     vocabulary.Settings
	logger       *slog.Logger
}

// NewVectorResolver creates the fallback resolver. Either directory may be nil.
func NewVectorResolver(embedder Embedder, designations DesignationDirectory, skills SkillDirectory, settings vocabulary.Settings, logger *slog.Logger) *VectorResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorResolver{
		embedder:     embedder,
		designations: designations,
		skills:       skills,
		settings:     settings,
		logger:       logger,
	}
}

// Resolve implements TermResolver. Each directory is capped independently and the
// results are merged by similarity, highest first, ties broken by name.
func (r *VectorResolver) Resolve(ctx context.Context, terms []string) (Outcomes, error) {
	out := make(Outcomes, len(terms))
	if r.embedder == nil {
		return out, nil
	}

	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		vec, err := r.embedder.Embed(ctx, term)
		if err != nil {
			r.logger.Warn("embedding failed", slog.String("term", term), slog.String("error", err.Error()))
			continue
		}

		var merged []types.Match
		if r.designations != nil {
			merged = append(merged, r.search(ctx, r.designations, "designation", term, vec, r.settings.VectorDesignationLimit)...)
		}
		if r.skills != nil {
			merged = append(merged, r.search(ctx, r.skills, "skill", term, vec, r.settings.VectorSkillLimit)...)
		}

		sort.SliceStable(merged, func(i, j int) bool {
			if merged[i].Score != merged[j].Score {
				return merged[i].Score > merged[j].Score
			}
			return merged[i].Name < merged[j].Name
		})
		out.set(term, dedupe(types.MatchNames(merged)), TierVector)
	}
	return out, nil
}

func (r *VectorResolver) search(ctx context.Context, dir Directory, kind, term string, vec []float32, limit int) []types.Match {
	matches, err := dir.EmbeddingSearch(ctx, vec, r.settings.VectorSimilarityThreshold, limit)
	if err != nil {
		r.logger.Warn("embedding search failed",
			slog.String("directory", kind),
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		return nil
	}

	kept := matches[:0:0]
	for _, m := range matches {
		if m.Score > r.settings.VectorSimilarityThreshold {
			kept = append(kept, m)
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
