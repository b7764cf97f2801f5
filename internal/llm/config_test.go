package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, "text-embedding-004", config.EmbeddingModel)
	assert.Equal(t, DefaultTimeout, config.CallTimeout())
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{TierLite: "fallback-model"}}
	assert.Equal(t, "fallback-model", config.GetModel(TierAdvanced))

	empty := &Config{Models: map[ModelTier]string{}}
	assert.Equal(t, "", empty.GetModel(TierAdvanced))
}

func TestWithModel_DoesNotMutateOriginal(t *testing.T) {
	original := DefaultConfig()
	custom := original.WithModel(TierLite, "custom-lite")

	assert.Equal(t, "custom-lite", custom.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash-lite", original.GetModel(TierLite))
	assert.Equal(t, original.EmbeddingModel, custom.EmbeddingModel)
}

func TestCallTimeout(t *testing.T) {
	var nilConfig *Config
	assert.Equal(t, DefaultTimeout, nilConfig.CallTimeout())
	assert.Equal(t, 5*time.Second, (&Config{Timeout: 5 * time.Second}).CallTimeout())
}
