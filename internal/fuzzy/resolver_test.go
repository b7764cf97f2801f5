package fuzzy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// fakeEmbedder maps a handful of words onto a 3-d space.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	switch text {
	case "crimson", "rockstar":
		return []float32{1, 0, 0}, nil
	case "broken":
		return nil, errors.New("embedding service down")
	default:
		return []float32{0, 0, 1}, nil
	}
}

var skillVectors = map[string][]float32{
	"Ruby":   {0.9, 0.1, 0},
	"Rust":   {0.9, 0.1, 0},
	"Python": {0.1, 0.9, 0},
}

var designationVectors = map[string][]float32{
	"Principal Software Engineer": {0.95, 0, 0.1},
	"Business Analyst":            {0, 1, 0},
}

func newTestResolver(t *testing.T, model llm.LanguageModel) *Resolver {
	t.Helper()
	vocab := vocabulary.MustDefault()
	designations := NewMemoryDirectory([]string{
		"Senior Software Engineer", "Software Engineer", "Technical Lead",
		"Principal Software Engineer", "Business Analyst", "Data Scientist",
	}, designationVectors)
	skills := NewMemoryDirectory([]string{
		"React", "TypeScript", "JavaScript", "Python", "Django", "Ruby", "Rust", "Kafka",
	}, skillVectors)
	return Build(vocab, model, 0, &fakeEmbedder{}, designations, skills, nil)
}

func TestResolver_StaticTiers(t *testing.T) {
	r := newTestResolver(t, nil)

	res, err := r.Resolve(context.Background(), []string{"SSE", "TLs", "frontend"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Senior Software Engineer"}, res.Resolution["SSE"])
	assert.Equal(t, []string{"Technical Lead"}, res.Resolution["TLs"])
	// only category skills present in the directory survive, in category order
	assert.Equal(t, []string{"React", "JavaScript", "TypeScript"}, res.Resolution["frontend"])
	assert.Equal(t, Stats{Total: 3, Static: 3}, res.Stats)
}

func TestResolver_FuzzyTier(t *testing.T) {
	r := newTestResolver(t, nil)

	res, err := r.Resolve(context.Background(), []string{"kafka", "scientist"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kafka"}, res.Resolution["kafka"])
	assert.Equal(t, TierFuzzy, res.Tiers["kafka"])
	assert.Equal(t, []string{"Data Scientist"}, res.Resolution["scientist"])
}

func TestResolver_MultiWordSkillsWithoutEmbedder(t *testing.T) {
	vocab := vocabulary.MustDefault()
	designations := NewMemoryDirectory([]string{"Software Engineer"}, nil)
	skills := NewMemoryDirectory([]string{"React", "React Native", "Spring Boot", "Node.js", "Java"}, nil)
	r := Build(vocab, nil, 0, nil, designations, skills, nil)

	res, err := r.Resolve(context.Background(), []string{"React Native", "Spring Boot", "node.js"})
	require.NoError(t, err)

	for _, term := range []string{"React Native", "Spring Boot", "node.js"} {
		require.NotEmpty(t, res.Resolution[term], "term %q", term)
		assert.Equal(t, TierFuzzy, res.Tiers[term])
	}
	assert.Equal(t, "React Native", res.Resolution["React Native"][0])
	assert.Equal(t, "Spring Boot", res.Resolution["Spring Boot"][0])
	assert.Equal(t, "Node.js", res.Resolution["node.js"][0])
	assert.Empty(t, res.Unresolved)
}

func TestResolver_VectorFallback(t *testing.T) {
	r := newTestResolver(t, nil)

	res, err := r.Resolve(context.Background(), []string{"crimson", "broken", "C++ 20"})
	require.NoError(t, err)

	// merged across directories by similarity, ties broken by name
	assert.Equal(t, []string{"Principal Software Engineer", "Ruby", "Rust"}, res.Resolution["crimson"])
	assert.Equal(t, TierVector, res.Tiers["crimson"])

	_, ok := res.Resolution["broken"]
	assert.False(t, ok, "failed embeddings leave the term unresolved")
	assert.ElementsMatch(t, []string{"broken", "C++ 20"}, res.Unresolved)
	assert.Equal(t, 2, res.Stats.Unresolved)
}

func TestResolver_NoEmptyValues(t *testing.T) {
	r := newTestResolver(t, nil)
	res, err := r.Resolve(context.Background(), []string{"SSE", "zzzz", "qqq", "mobile", "C++ 20"})
	require.NoError(t, err)

	for term, values := range res.Resolution {
		assert.NotEmpty(t, values, "term %q", term)
	}
	assert.Equal(t, res.Stats.Total, len(res.Resolution)+len(res.Unresolved))
}

func TestResolver_Idempotent(t *testing.T) {
	r := newTestResolver(t, nil)
	terms := []string{"SSE", "frontend", "kafka", "crimson", "scientist", "backend"}

	first, err := r.Resolve(context.Background(), terms)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), terms)
		require.NoError(t, err)
		assert.Equal(t, first.Resolution, again.Resolution)
		assert.Equal(t, first.Tiers, again.Tiers)
	}
}

func TestResolver_ResolveQuery_ModelFallsBackToRules(t *testing.T) {
	stub := &llm.Stub{} // Classify returns ErrUnavailable by default
	r := newTestResolver(t, stub)

	res, err := r.ResolveQuery(context.Background(), "Show me all SSE")
	require.NoError(t, err)
	assert.Equal(t, SourceRules, res.Source)
	assert.Equal(t, []string{"Senior Software Engineer"}, res.Resolution["SSE"])
}

func TestResolver_ResolveQuery_UsesModelTerms(t *testing.T) {
	stub := &llm.Stub{
		ClassifyFn: func(ctx context.Context, text string) (*llm.Classification, error) {
			return &llm.Classification{Label: llm.LabelFuzzy, Terms: []string{"TL"}}, nil
		},
	}
	r := newTestResolver(t, stub)

	res, err := r.ResolveQuery(context.Background(), "who can lead the migration?")
	require.NoError(t, err)
	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, []string{"Technical Lead"}, res.Resolution["TL"])
}

func TestResolver_ResolveQuery_Precise(t *testing.T) {
	r := newTestResolver(t, nil)
	res, err := r.ResolveQuery(context.Background(), "How many projects are active?")
	require.NoError(t, err)
	assert.Empty(t, res.Resolution)
	assert.Equal(t, 0, res.Stats.Total)
}

func TestResolver_Cancelled(t *testing.T) {
	r := newTestResolver(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, []string{"SSE", "frontend"})
	assert.ErrorIs(t, err, context.Canceled)
}

type failingDirectory struct{}

func (failingDirectory) FuzzySearch(ctx context.Context, term string, threshold float64, limit int) ([]types.Match, error) {
	return nil, errors.New("db down")
}

func (failingDirectory) EmbeddingSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]types.Match, error) {
	return nil, errors.New("db down")
}

func (failingDirectory) Skills(ctx context.Context) ([]string, error) {
	return nil, errors.New("db down")
}

func TestResolver_DirectoryFailuresDegrade(t *testing.T) {
	vocab := vocabulary.MustDefault()
	r := Build(vocab, nil, 0, &fakeEmbedder{}, failingDirectory{}, failingDirectory{}, nil)

	res, err := r.Resolve(context.Background(), []string{"SSE", "mobile", "kafka"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Senior Software Engineer"}, res.Resolution["SSE"])
	// unfiltered category expansion when the snapshot is unavailable
	assert.Equal(t, vocab.CategorySkills("mobile")[:3], res.Resolution["mobile"][:3])
	assert.Contains(t, res.Unresolved, "kafka")
}

func TestStats_Rate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.Rate())
	assert.InDelta(t, 0.75, Stats{Total: 4, Unresolved: 1}.Rate(), 1e-9)
}
