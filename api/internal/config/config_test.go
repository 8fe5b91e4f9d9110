package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "PRIMARY_AI_TIMEOUT", "OCR_ENGINES", "MAX_WORKERS", "GEMINI_API_KEY", "SECONDARY_AI_TYPE"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, "8000", c.Port)
	assert.Equal(t, 30*time.Second, c.PrimaryAITimeout)
	assert.Equal(t, 1, c.PrimaryAIRetries)
	assert.Equal(t, []string{"yandex"}, c.OCREngines)
	assert.Equal(t, 4, c.MaxWorkers)
	assert.False(t, c.PrimaryEnabled())
	assert.False(t, c.SecondaryEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRIMARY_AI_TIMEOUT", "12s")
	t.Setenv("SECONDARY_AI_TIMEOUT", "nonsense")
	t.Setenv("OCR_ENGINES", " Mistral, yandex ,")
	t.Setenv("MAX_WORKERS", "-3")
	t.Setenv("PRIMARY_AI_RPS", "0.5")
	c := Load()
	assert.Equal(t, 12*time.Second, c.PrimaryAITimeout)
	assert.Equal(t, 30*time.Second, c.SecondaryAITimeout)
	assert.Equal(t, []string{"mistral", "yandex"}, c.OCREngines)
	assert.Equal(t, 4, c.MaxWorkers)
	assert.InDelta(t, 0.5, c.PrimaryAIRPS, 1e-9)
}

func TestValidate(t *testing.T) {
	c := &Config{MaxWorkers: 2, OCREngines: []string{"mistral"}, MistralAPIKey: "k"}
	assert.NoError(t, c.Validate())

	c = &Config{MaxWorkers: 0, OCREngines: []string{"tesseract", "yandex"}, SecondaryAIType: "llama"}
	err := c.Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "MAX_WORKERS")
		assert.Contains(t, err.Error(), "tesseract")
		assert.Contains(t, err.Error(), "YC_OAUTH_TOKEN")
		assert.Contains(t, err.Error(), "unsupported")
		assert.Contains(t, err.Error(), "SECONDARY_AI_MODEL")
	}
}
