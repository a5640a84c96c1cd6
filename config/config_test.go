package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.CompletionModel)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 0.6, cfg.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.4, cfg.MinScore)
	assert.Equal(t, 0.3, cfg.ExclusionMinScore)
	assert.Equal(t, 8, cfg.MaxSteps)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, "local", cfg.StorageType)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("MAX_REASONING_STEPS", "12")
	t.Setenv("KEYWORD_ONLY", "true")
	t.Setenv("INITIAL_BACKOFF", "250ms")
	t.Setenv("STORAGE_TYPE", "s3")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, 0.75, cfg.ConfidenceThreshold)
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.True(t, cfg.KeywordOnly)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, "s3", cfg.StorageType)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "lots")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")

	cfg := Load()

	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 0.6, cfg.ConfidenceThreshold)
}
