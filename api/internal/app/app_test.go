package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/config"
	"mathcast/api/internal/ocr"
	"mathcast/api/internal/ocr/mistral"
	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/render"
	"mathcast/api/internal/tracker"
)

func TestBuildOCR(t *testing.T) {
	assert.Nil(t, BuildOCR(&config.Config{OCREngines: []string{"yandex"}}))

	m := BuildOCR(&config.Config{OCREngines: []string{"mistral", "yandex"}, MistralAPIKey: "k"})
	require.NotNil(t, m)
	_, ok := m.Default().(*mistral.Engine)
	assert.True(t, ok)
	assert.Equal(t, []string{"mistral"}, m.Names())

	m = BuildOCR(&config.Config{
		OCREngines:    []string{"mistral", "yandex"},
		MistralAPIKey: "k", YCOAuthToken: "t", YCFolderID: "f",
	})
	require.NotNil(t, m)
	_, ok = m.Default().(*ocr.Best)
	assert.True(t, ok)
	assert.Equal(t, []string{"best(mistral,yandex)", "mistral", "yandex"}, m.Names())

	m = BuildOCR(&config.Config{OCREngines: []string{"gemini"}, GeminiAPIKey: "g"})
	require.NotNil(t, m)
	assert.Equal(t, []string{"gemini"}, m.Names())
}

func TestBuildRenderer(t *testing.T) {
	_, ok := BuildRenderer(&config.Config{RenderURL: "http://render:9000", RenderTimeout: time.Second}).(*render.Client)
	assert.True(t, ok)
	_, ok = BuildRenderer(&config.Config{OutputDir: t.TempDir()}).(*render.ManifestWriter)
	assert.True(t, ok)
}

func TestBuildSolverRejectsBadSecondary(t *testing.T) {
	_, err := BuildSolver(context.Background(), &config.Config{SecondaryAIType: "openai"}, nil)
	assert.Error(t, err)
}

func TestNewWithoutStorageSolvesTypedProblem(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "POSTGRES_PASSWORD", "PGHOST"} {
		t.Setenv(k, "")
	}
	cfg := &config.Config{MaxWorkers: 2, MaxUploadBytes: 1 << 20, OutputDir: t.TempDir()}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.OCR)
	assert.NoError(t, a.Ping(context.Background()))

	id, err := a.Service.Submit(pipeline.Submission{Text: "Solve for x: 3x - 4 = 11"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, _ := a.Service.Poll(id)
		return task.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	task, _ := a.Service.Poll(id)
	require.Equal(t, tracker.StatusCompleted, task.Status, task.Error)
	assert.Equal(t, "5", task.Result.Solution.FinalAnswer)
	assert.Equal(t, problem.LocalSymbolic, task.Result.Solution.Provider)
	assert.NotEmpty(t, task.Result.Artifact.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, a.Close(ctx))
}
