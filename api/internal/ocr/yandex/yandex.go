package yandex

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

const recognizeURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

type Engine struct {
	iamc     *IamClient
	folderID string
	model    string
	langs    []string
	url      string
	httpc    *http.Client
}

func New(oauthToken, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauthToken),
		folderID: folderID,
		model:    "handwritten",
		langs:    []string{"en", "ru"},
		url:      recognizeURL,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["en","ru"]
	Model         string   `json:"model,omitempty"`         // "handwritten" | "page"
}

type line struct {
	Text string `json:"text,omitempty"`
}

type annotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []line `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *annotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (r *response) textAnnotation() *annotation {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.TextAnnotation
}

func (e *Engine) ExtractText(ctx context.Context, image []byte) (ocr.Text, error) {
	if len(image) == 0 {
		return ocr.Text{}, errors.New("yandex ocr: empty image")
	}
	payload, _ := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      util.SniffMimeForOCR(image),
		LanguageCodes: e.langs,
		Model:         e.model,
	})

	resp, err := e.post(ctx, payload)
	if err != nil {
		return ocr.Text{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh token
		resp.Body.Close()
		e.iamc.Invalidate()
		if resp, err = e.post(ctx, payload); err != nil {
			return ocr.Text{}, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return ocr.Text{}, fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, string(x))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Text{}, fmt.Errorf("yandex ocr: decode: %w", err)
	}
	txt := joinText(out.textAnnotation())
	if txt == "" {
		return ocr.Text{}, ocr.ErrNoText
	}
	return ocr.Text{Content: txt, Confidence: ocr.EstimateConfidence(txt), Engine: e.Name()}, nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (*http.Response, error) {
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

func joinText(ta *annotation) string {
	if ta == nil {
		return ""
	}
	if t := strings.TrimSpace(ta.FullText); t != "" {
		return t
	}
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n")
}
