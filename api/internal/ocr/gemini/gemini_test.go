package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/ocr"
)

func candidate(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
	})
	return string(b)
}

func serve(t *testing.T, status int, body string) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/"+DefaultModel+":generateContent"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		var req struct {
			Contents []struct {
				Parts []map[string]any `json:"parts"`
			} `json:"contents"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Contents, 1) && assert.Len(t, req.Contents[0].Parts, 2) {
			inline, _ := req.Contents[0].Parts[1]["inline_data"].(map[string]any)
			assert.Equal(t, "image/png", inline["mime_type"])
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	e := New("k", "")
	e.url = srv.URL
	return e
}

var png = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func TestExtractTextJSON(t *testing.T) {
	e := serve(t, http.StatusOK, candidate(`{"text":"Solve for x: 2x + 5 = 13","confidence":0.8}`))
	got, err := e.ExtractText(context.Background(), png)
	require.NoError(t, err)
	assert.Equal(t, "Solve for x: 2x + 5 = 13", got.Content)
	assert.Equal(t, "gemini", got.Engine)
	assert.LessOrEqual(t, got.Confidence, 0.8)
	assert.Greater(t, got.Confidence, 0.0)
}

func TestExtractTextPlainFallback(t *testing.T) {
	e := serve(t, http.StatusOK, candidate("x^2 - 5x + 6 = 0"))
	got, err := e.ExtractText(context.Background(), png)
	require.NoError(t, err)
	assert.Equal(t, "x^2 - 5x + 6 = 0", got.Content)
}

func TestExtractTextErrors(t *testing.T) {
	_, err := New("", "").ExtractText(context.Background(), png)
	assert.Error(t, err)

	_, err = serve(t, http.StatusOK, candidate(`{"text":"","confidence":0}`)).ExtractText(context.Background(), png)
	assert.ErrorIs(t, err, ocr.ErrNoText)

	_, err = serve(t, http.StatusOK, `{"candidates":[]}`).ExtractText(context.Background(), png)
	assert.ErrorIs(t, err, ocr.ErrNoText)

	_, err = serve(t, http.StatusTooManyRequests, `{"error":"quota"}`).ExtractText(context.Background(), png)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini 429")
}
