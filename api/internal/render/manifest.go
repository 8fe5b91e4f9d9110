package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/util"
)

// ManifestWriter stores the storyboard and its subtitles on disk for an
// offline renderer. It is used when no render service is configured.
type ManifestWriter struct {
	Dir string
}

func NewManifestWriter(dir string) *ManifestWriter {
	if dir == "" {
		dir = "output"
	}
	return &ManifestWriter{Dir: dir}
}

func (w *ManifestWriter) Render(ctx context.Context, p problem.Problem, sol problem.Solution) (problem.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return problem.Artifact{}, err
	}
	sb := Build(p, sol)
	js, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		return problem.Artifact{}, fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return problem.Artifact{}, fmt.Errorf("manifest: %w", err)
	}

	base := fmt.Sprintf("math_solution_%s_%s", p.Type, util.SHA256Hex(js)[:12])
	path := filepath.Join(w.Dir, base+".json")
	if err := os.WriteFile(path, js, 0o644); err != nil {
		return problem.Artifact{}, fmt.Errorf("manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, base+".srt"), []byte(SRT(sb)), 0o644); err != nil {
		return problem.Artifact{}, fmt.Errorf("manifest: %w", err)
	}
	return problem.Artifact{Path: path, Duration: sb.Duration, Frames: sb.Frames()}, nil
}
