package fuzzy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigramSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TrigramSimilarity("React", "react"), 1e-9)
	assert.Equal(t, 0.0, TrigramSimilarity("", "react"))
	assert.Greater(t, TrigramSimilarity("reactjs", "react"), 0.3)
	assert.Less(t, TrigramSimilarity("python", "react"), 0.1)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestMemoryDirectory_FuzzySearch(t *testing.T) {
	dir := NewMemoryDirectory([]string{"React", "React Native", "Redux", "Python"}, nil)

	matches, err := dir.FuzzySearch(context.Background(), "react", 0.2, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "React", matches[0].Name)
	assert.Equal(t, "React Native", matches[1].Name)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestMemoryDirectory_EmbeddingSearchRespectsThreshold(t *testing.T) {
	dir := NewMemoryDirectory([]string{"Ruby", "Python"}, skillVectors)

	matches, err := dir.EmbeddingSearch(context.Background(), []float32{1, 0, 0}, 0.2, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Ruby", matches[0].Name)
}
