// Package fuzzy resolves vague business vocabulary ("SSE", "frontend folks",
// "cloud experts") to concrete designation titles and skill names.
//
// Resolution is tiered: the static vocabulary first, then ranked text search
// against the directories, then embedding similarity for whatever is left.
package fuzzy

import (
	"context"

	"github.com/jonathan/resourcewise/internal/types"
)

// Tier names the stage that resolved a term.
type Tier string

// Resolution tiers.
const (
	TierStatic     Tier = "static"
	TierFuzzy      Tier = "fuzzy"
	TierVector     Tier = "vector"
	TierUnresolved Tier = "unresolved"
)

// Resolution maps a term to its resolved values. A present key never maps to an empty slice.
type Resolution map[string][]string

// Outcome is one resolved term.
type Outcome struct {
	Values []string
	Tier   Tier
}

// Outcomes maps terms to outcomes. Unresolved terms are absent.
type Outcomes map[string]Outcome

// Directory is a ranked lookup over canonical names.
type Directory interface {
	// FuzzySearch returns names scoring above threshold by text rank or trigram similarity, best first.
	FuzzySearch(ctx context.Context, term string, threshold float64, limit int) ([]types.Match, error)
	// EmbeddingSearch returns names with cosine similarity above threshold, best first.
	EmbeddingSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]types.Match, error)
}

// DesignationDirectory looks up designation titles.
type DesignationDirectory interface {
	Directory
}

// SkillDirectory looks up skill names.
type SkillDirectory interface {
	Directory
	// Skills returns a snapshot of every known skill name.
	Skills(ctx context.Context) ([]string, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TermResolver resolves a batch of terms. Terms it cannot resolve are left out of the result.
type TermResolver interface {
	Resolve(ctx context.Context, terms []string) (Outcomes, error)
}

func (o Outcomes) set(term string, values []string, tier Tier) {
	if len(values) == 0 {
		return
	}
	o[term] = Outcome{Values: values, Tier: tier}
}

// dedupe keeps the first occurrence of each value, case-insensitively.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := foldKey(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
