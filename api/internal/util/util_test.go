package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Inner struct {
		N int `json:"n,omitempty"`
	} `json:"inner"`
}

func TestSchemaOfStrictRequiresEverything(t *testing.T) {
	m, err := SchemaOf(&sample{}, true)
	require.NoError(t, err)
	assert.NotContains(t, m, "$id")
	assert.Equal(t, "object", m["type"])
	assert.ElementsMatch(t, []any{"name", "tags", "inner"}, m["required"])

	inner := m["properties"].(map[string]any)["inner"].(map[string]any)
	assert.ElementsMatch(t, []any{"n"}, inner["required"])
}

func TestSchemaOfLoose(t *testing.T) {
	m, err := SchemaOf(&sample{}, false)
	require.NoError(t, err)
	assert.Contains(t, m, "$schema")
	assert.ElementsMatch(t, []any{"name", "inner"}, m["required"])
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
	assert.Len(t, SHA256Hex([]byte("x")), 64)
}

func TestSniffMime(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}
	jpg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	assert.Equal(t, "PNG", SniffMimeForOCR(png))
	assert.Equal(t, "JPEG", SniffMimeForOCR(jpg))
	assert.Equal(t, "PDF", SniffMimeForOCR([]byte("%PDF-1.7")))
	assert.Equal(t, "", SniffMimeForOCR([]byte("hello")))
	assert.True(t, IsImage(png))
	assert.False(t, IsImage([]byte("plain text")))
	assert.False(t, IsImage(nil))
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte("image bytes")
	enc := base64.StdEncoding.EncodeToString(raw)

	b, mime, err := DecodeBase64MaybeDataURL(MakeDataURL("image/png", enc))
	require.NoError(t, err)
	assert.Equal(t, raw, b)
	assert.Equal(t, "image/png", mime)

	b, mime, err = DecodeBase64MaybeDataURL(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, b)
	assert.Empty(t, mime)

	_, _, err = DecodeBase64MaybeDataURL("!!not base64!!")
	assert.Error(t, err)
}
