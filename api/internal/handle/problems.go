package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/store"
	"mathcast/api/internal/util"
)

// SubmitRequest is the JSON form of POST /v1/problems. Multipart uploads
// carry the same fields as form parts, with the image as a file.
type SubmitRequest struct {
	ImageB64 string `json:"image_b64,omitempty"`
	Text     string `json:"text,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (h *Handle) SubmitProblem(w http.ResponseWriter, r *http.Request) {
	sub, status, code, err := h.readSubmission(r)
	if err != nil {
		writeErr(w, status, code, err.Error())
		return
	}
	if len(sub.Image) > 0 && !util.IsImage(sub.Image) {
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media", "image must be JPEG, PNG, GIF or WebP")
		return
	}

	id, err := h.svc.Submit(sub)
	switch {
	case errors.Is(err, pipeline.ErrEmptySubmission):
		writeErr(w, http.StatusBadRequest, "empty_submission", "image or text is required")
		return
	case errors.Is(err, pipeline.ErrTooLarge):
		writeErr(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		return
	case errors.Is(err, pipeline.ErrShuttingDown):
		writeErr(w, http.StatusServiceUnavailable, "shutting_down", err.Error())
		return
	case err != nil:
		log.Printf("http: submit: %v", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not queue the problem")
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{TaskID: id, Status: "pending"})
}

func (h *Handle) readSubmission(r *http.Request) (pipeline.Submission, int, string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return h.readMultipart(r)
	}

	// base64 inflates by a third
	limit := h.maxBytes*4/3 + 64<<10
	req, err := parseJSON[SubmitRequest](r, limit)
	if err != nil {
		return pipeline.Submission{}, http.StatusBadRequest, "bad_json", fmt.Errorf("bad json: %w", err)
	}
	sub := pipeline.Submission{Text: strings.TrimSpace(req.Text), Filename: req.Filename}
	if req.ImageB64 != "" {
		img, _, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
		if err != nil {
			return pipeline.Submission{}, http.StatusBadRequest, "bad_image", errors.New("bad image_b64")
		}
		sub.Image = img
	}
	return sub, 0, "", nil
}

func (h *Handle) readMultipart(r *http.Request) (pipeline.Submission, int, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return pipeline.Submission{}, http.StatusRequestEntityTooLarge, "too_large", errors.New("upload too large")
		}
		return pipeline.Submission{}, http.StatusBadRequest, "bad_form", fmt.Errorf("bad multipart form: %w", err)
	}
	sub := pipeline.Submission{Text: strings.TrimSpace(r.FormValue("text"))}

	f, hdr, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return sub, 0, "", nil
	case err != nil:
		return pipeline.Submission{}, http.StatusBadRequest, "bad_form", fmt.Errorf("image: %w", err)
	}
	defer f.Close()
	img, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return pipeline.Submission{}, http.StatusBadRequest, "bad_form", fmt.Errorf("read image: %w", err)
	}
	sub.Image = img
	sub.Filename = hdr.Filename
	return sub, 0, "", nil
}

func (h *Handle) Progress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if task, ok := h.svc.Poll(id); ok {
		writeJSON(w, http.StatusOK, task)
		return
	}
	if h.tasks != nil {
		task, err := h.tasks.FindTask(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, task)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("http: find task %s: %v", id, err)
		}
	}
	writeErr(w, http.StatusNotFound, "not_found", "unknown task "+id)
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}
	return out, nil
}
