// Package gemini reads problem photos with a Gemini vision model.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathcast/api/internal/ocr"
	"mathcast/api/internal/util"
)

const (
	baseURL      = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel = "gemini-2.5-flash"
)

const transcribePrompt = `Transcribe the math problem in this photo as plain text.
Copy the statement exactly; do not solve it and do not add anything.
Write powers as x^2, fractions as (a)/(b), roots as sqrt(...). No LaTeX and no Markdown.
Return STRICT JSON: {"text": string, "confidence": number between 0 and 1}.
If there is no readable text return {"text": "", "confidence": 0}.`

type Engine struct {
	APIKey string
	Model  string
	url    string
	httpc  *http.Client
}

func New(key, model string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
		url:    baseURL,
		httpc:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

type reply struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

func (e *Engine) ExtractText(ctx context.Context, image []byte) (ocr.Text, error) {
	if e.APIKey == "" {
		return ocr.Text{}, errors.New("GEMINI_API_KEY is empty")
	}
	if len(image) == 0 {
		return ocr.Text{}, errors.New("empty image")
	}

	body := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": transcribePrompt},
					map[string]any{"inline_data": map[string]any{
						"mime_type": util.SniffMimeHTTP(image),
						"data":      base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      0,
			"responseMimeType": "application/json",
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ocr.Text{}, err
	}
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", e.url, e.Model, e.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ocr.Text{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Text{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ocr.Text{}, fmt.Errorf("gemini %d: %s", resp.StatusCode, string(x))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Text{}, fmt.Errorf("gemini: bad response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return ocr.Text{}, ocr.ErrNoText
	}

	raw := util.StripCodeFences(out.Candidates[0].Content.Parts[0].Text)
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		// plain text instead of JSON is still a transcription
		r = reply{Text: raw}
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return ocr.Text{}, ocr.ErrNoText
	}

	conf := ocr.EstimateConfidence(text)
	if r.Confidence != nil && *r.Confidence >= 0 && *r.Confidence <= 1 {
		conf = min(conf, *r.Confidence)
	}
	return ocr.Text{Content: text, Confidence: conf, Engine: e.Name()}, nil
}
