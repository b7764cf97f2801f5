package fuzzy

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/jonathan/resourcewise/internal/types"
)

// MemoryDirectory is an in-process directory over a fixed list of names.
// Text search uses pg_trgm-style trigram similarity plus a whole-word bonus,
// so it ranks the way the database directory does for small vocabularies.
type MemoryDirectory struct {
	names   []string
	vectors map[string][]float32
}

// NewMemoryDirectory creates a directory. vectors may be nil to disable embedding search.
func NewMemoryDirectory(names []string, vectors map[string][]float32) *MemoryDirectory {
	sorted := dedupe(append([]string(nil), names...))
	sort.Strings(sorted)
	return &MemoryDirectory{names: sorted, vectors: vectors}
}

// Skills returns every name.
func (d *MemoryDirectory) Skills(ctx context.Context) ([]string, error) {
	return append([]string(nil), d.names...), nil
}

// FuzzySearch implements Directory.
func (d *MemoryDirectory) FuzzySearch(ctx context.Context, term string, threshold float64, limit int) ([]types.Match, error) {
	var matches []types.Match
	for _, n := range d.names {
		score := math.Max(wordRank(n, term), TrigramSimilarity(n, term))
		if score > threshold {
			matches = append(matches, types.Match{Name: n, Score: score})
		}
	}
	return rank(matches, limit), nil
}

// EmbeddingSearch implements Directory.
func (d *MemoryDirectory) EmbeddingSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]types.Match, error) {
	var matches []types.Match
	for _, n := range d.names {
		v, ok := d.vectors[n]
		if !ok {
			continue
		}
		if score := Cosine(vector, v); score > threshold {
			matches = append(matches, types.Match{Name: n, Score: score})
		}
	}
	return rank(matches, limit), nil
}

func rank(matches []types.Match, limit int) []types.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// wordRank scores the share of the query's words found in name, a stand-in for ts_rank.
func wordRank(name, query string) float64 {
	qw := strings.Fields(strings.ToLower(query))
	if len(qw) == 0 {
		return 0
	}
	nw := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(name)) {
		nw[w] = true
	}
	hits := 0
	for _, w := range qw {
		if nw[w] || nw[strings.TrimSuffix(w, "s")] {
			hits++
		}
	}
	return float64(hits) / float64(len(qw)) * 0.5
}

// TrigramSimilarity mirrors pg_trgm similarity: shared trigrams over the union of trigrams.
func TrigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// trigrams splits s into words of alphanumerics, pads each with two leading
// spaces and one trailing space, and collects the distinct trigrams.
func trigrams(s string) map[string]bool {
	set := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = true
		}
	}
	return set
}

// Cosine returns the cosine similarity of a and b, or 0 when they differ in length or are zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
