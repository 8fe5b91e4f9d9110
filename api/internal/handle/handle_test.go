package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/store"
	"mathcast/api/internal/tracker"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13}

type fakeService struct {
	tr   *tracker.Tracker
	subs []pipeline.Submission
	err  error
}

func (f *fakeService) Submit(sub pipeline.Submission) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.subs = append(f.subs, sub)
	return f.tr.Create(), nil
}

func (f *fakeService) Poll(id string) (tracker.Task, bool) { return f.tr.Get(id) }

type fakeTasks map[string]tracker.Task

func (f fakeTasks) FindTask(_ context.Context, id string) (tracker.Task, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return tracker.Task{}, store.ErrNotFound
}

type fakeHistory struct {
	entries map[string]store.HistoryEntry
	query   string
	limit   int
}

func (f *fakeHistory) Get(_ context.Context, id string) (store.HistoryEntry, error) {
	if e, ok := f.entries[id]; ok {
		return e, nil
	}
	return store.HistoryEntry{}, store.ErrNotFound
}

func (f *fakeHistory) List(_ context.Context, q string, limit int) ([]store.HistoryEntry, error) {
	f.query, f.limit = q, limit
	var out []store.HistoryEntry
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeHistory) Delete(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func newTestHandle(o Options) (*Handle, *fakeService) {
	svc := &fakeService{tr: tracker.New()}
	return New(svc, o), svc
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitJSONText(t *testing.T) {
	h, svc := newTestHandle(Options{})
	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodPost, "/v1/problems", strings.NewReader(`{"text":" 2x + 5 = 13 "}`)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[SubmitResponse](t, rec)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
	require.Len(t, svc.subs, 1)
	assert.Equal(t, "2x + 5 = 13", svc.subs[0].Text)
	assert.Empty(t, svc.subs[0].Image)
}

func TestSubmitJSONImage(t *testing.T) {
	h, svc := newTestHandle(Options{})
	body := `{"image_b64":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngBytes) + `","filename":"hw.png"}`
	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodPost, "/v1/problems", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, svc.subs, 1)
	assert.Equal(t, pngBytes, svc.subs[0].Image)
	assert.Equal(t, "hw.png", svc.subs[0].Filename)
}

func TestSubmitMultipart(t *testing.T) {
	h, svc := newTestHandle(Options{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, _ = fw.Write(pngBytes)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/problems", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, h.Routes(), req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, svc.subs, 1)
	assert.Equal(t, pngBytes, svc.subs[0].Image)
	assert.Equal(t, "photo.png", svc.subs[0].Filename)
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		svcErr error
		status int
		code   string
	}{
		{"bad json", `{"text":`, nil, http.StatusBadRequest, "bad_json"},
		{"unknown field", `{"prompt":"x"}`, nil, http.StatusBadRequest, "bad_json"},
		{"bad base64", `{"image_b64":"!!!"}`, nil, http.StatusBadRequest, "bad_image"},
		{"not an image", `{"image_b64":"` + base64.StdEncoding.EncodeToString([]byte("just some text")) + `"}`, nil, http.StatusUnsupportedMediaType, "unsupported_media"},
		{"empty", `{}`, pipeline.ErrEmptySubmission, http.StatusBadRequest, "empty_submission"},
		{"too large", `{"text":"x"}`, pipeline.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
		{"shutting down", `{"text":"x"}`, pipeline.ErrShuttingDown, http.StatusServiceUnavailable, "shutting_down"},
		{"other", `{"text":"x"}`, errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, svc := newTestHandle(Options{})
			svc.err = tc.svcErr
			rec := do(t, h.Routes(), httptest.NewRequest(http.MethodPost, "/v1/problems", strings.NewReader(tc.body)))
			assert.Equal(t, tc.status, rec.Code)
			body := decode[map[string]any](t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestMethodGuard(t *testing.T) {
	h, _ := newTestHandle(Options{})
	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/v1/problems", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = do(t, h.Routes(), httptest.NewRequest(http.MethodPut, "/v1/history/abc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitPerIP(t *testing.T) {
	h, _ := newTestHandle(Options{RateLimitEvery: time.Hour, RateLimitBurst: 2})
	routes := h.Routes()
	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/problems", strings.NewReader(`{"text":"1+1"}`))
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		return do(t, routes, req).Code
	}
	assert.Equal(t, http.StatusAccepted, send("1.1.1.1"))
	assert.Equal(t, http.StatusAccepted, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
	assert.Equal(t, http.StatusAccepted, send("2.2.2.2"))
}

func TestProgress(t *testing.T) {
	archived := tracker.Task{ID: "old", Status: tracker.StatusCompleted, Progress: 100}
	h, svc := newTestHandle(Options{Tasks: fakeTasks{"old": archived}})
	id := svc.tr.Create()
	svc.tr.Update(id, 40, "Solving")

	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/v1/progress/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	task := decode[tracker.Task](t, rec)
	assert.Equal(t, tracker.StatusProcessing, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, "Solving", task.Message)

	rec = do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/v1/progress/old", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracker.StatusCompleted, decode[tracker.Task](t, rec).Status)

	rec = do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/v1/progress/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryRoutes(t *testing.T) {
	hist := &fakeHistory{entries: map[string]store.HistoryEntry{
		"a": {ID: "a", ExtractedText: "2x+5=13", Solution: problem.Solution{FinalAnswer: "x = 4"}},
	}}
	h, _ := newTestHandle(Options{History: hist})
	routes := h.Routes()

	rec := do(t, routes, httptest.NewRequest(http.MethodGet, "/v1/history?q=2x&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []store.HistoryEntry `json:"items"`
	}](t, rec)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, "2x", hist.query)
	assert.Equal(t, 5, hist.limit)

	rec = do(t, routes, httptest.NewRequest(http.MethodGet, "/v1/history/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x = 4", decode[store.HistoryEntry](t, rec).Solution.FinalAnswer)

	rec = do(t, routes, httptest.NewRequest(http.MethodDelete, "/v1/history/a", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, routes, httptest.NewRequest(http.MethodDelete, "/v1/history/a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, routes, httptest.NewRequest(http.MethodGet, "/v1/history/a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryNotConfigured(t *testing.T) {
	h, _ := newTestHandle(Options{})
	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandle(Options{})
	rec := do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode[map[string]string](t, rec)["db"])

	h, _ = newTestHandle(Options{Ping: func(context.Context) error { return errors.New("down") }})
	rec = do(t, h.Routes(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]string](t, rec)["status"])
}

func TestRecovery(t *testing.T) {
	rec := httptest.NewRecorder()
	withRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil map") })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
