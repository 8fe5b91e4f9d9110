package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mathcast/api/internal/ocr"
	"mathcast/api/internal/util"
)

const (
	ocrURL       = "https://api.mistral.ai/v1/ocr"
	DefaultModel = "mistral-ocr-latest"
)

type Engine struct {
	APIKey string
	Model  string
	url    string
	httpc  *http.Client
}

func New(apiKey, model string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
		url:    ocrURL,
		httpc:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "mistral" }
func (e *Engine) GetModel() string { return e.Model }

type page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type response struct {
	Pages []page `json:"pages"`
}

func (e *Engine) ExtractText(ctx context.Context, image []byte) (ocr.Text, error) {
	if e.APIKey == "" {
		return ocr.Text{}, errors.New("missing MISTRAL_API_KEY")
	}
	if len(image) == 0 {
		return ocr.Text{}, errors.New("mistral ocr: empty image")
	}
	dataURL := util.MakeDataURL(util.SniffMimeHTTP(image), base64.StdEncoding.EncodeToString(image))
	body := map[string]any{
		"model": e.Model,
		"document": map[string]any{
			"type":      "image_url",
			"image_url": dataURL,
		},
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(b))
	if err != nil {
		return ocr.Text{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Text{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return ocr.Text{}, fmt.Errorf("mistral ocr error %d: %s", resp.StatusCode, string(slurp))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ocr.Text{}, fmt.Errorf("mistral ocr: decode: %w", err)
	}
	var parts []string
	for _, p := range parsed.Pages {
		if s := cleanMarkdown(p.Markdown); s != "" {
			parts = append(parts, s)
		}
	}
	txt := strings.Join(parts, "\n")
	if txt == "" {
		return ocr.Text{}, ocr.ErrNoText
	}
	return ocr.Text{Content: txt, Confidence: ocr.EstimateConfidence(txt), Engine: e.Name()}, nil
}

var reFrac = regexp.MustCompile(`\\frac\{([^{}]*)\}\{([^{}]*)\}`)

var mdReplacer = strings.NewReplacer("$$", "", "$", "", "\\(", "", "\\)", "", "\\[", "", "\\]", "", "**", "", "\\cdot", "*", "\\times", "*", "\\div", "/", "\\pi", "π", "\\sqrt", "√")

// cleanMarkdown drops markdown and LaTeX delimiters the classifier does not
// understand. Image references are removed.
func cleanMarkdown(s string) string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "![") {
			continue
		}
		ln = strings.TrimLeft(ln, "#> ")
		ln = reFrac.ReplaceAllString(ln, "($1)/($2)")
		ln = mdReplacer.Replace(ln)
		ln = strings.NewReplacer("{", "(", "}", ")").Replace(ln)
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
