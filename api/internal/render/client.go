package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathcast/api/internal/problem"
)

// Client posts storyboards to an external render service.
type Client struct {
	URL   string
	httpc *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		URL:   strings.TrimRight(strings.TrimSpace(url), "/"),
		httpc: &http.Client{Timeout: timeout},
	}
}

type renderRequest struct {
	Storyboard Storyboard `json:"storyboard"`
	Subtitles  string     `json:"subtitles_srt"`
}

type renderResponse struct {
	URI        string `json:"uri"`
	DurationMS int64  `json:"duration_ms"`
	Frames     int    `json:"frames"`
	Error      string `json:"error,omitempty"`
}

func (c *Client) Render(ctx context.Context, p problem.Problem, sol problem.Solution) (problem.Artifact, error) {
	if c.URL == "" {
		return problem.Artifact{}, errors.New("render: RENDER_URL is empty")
	}
	sb := Build(p, sol)
	body, err := json.Marshal(renderRequest{Storyboard: sb, Subtitles: SRT(sb)})
	if err != nil {
		return problem.Artifact{}, fmt.Errorf("render: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/render", bytes.NewReader(body))
	if err != nil {
		return problem.Artifact{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return problem.Artifact{}, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return problem.Artifact{}, fmt.Errorf("render service %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return problem.Artifact{}, fmt.Errorf("render: bad response: %w", err)
	}
	if out.Error != "" {
		return problem.Artifact{}, fmt.Errorf("render service: %s", out.Error)
	}
	if out.URI == "" {
		return problem.Artifact{}, errors.New("render service returned no uri")
	}

	a := problem.Artifact{URI: out.URI, Duration: sb.Duration, Frames: sb.Frames()}
	if out.DurationMS > 0 {
		a.Duration = time.Duration(out.DurationMS) * time.Millisecond
	}
	if out.Frames > 0 {
		a.Frames = out.Frames
	}
	return a, nil
}
