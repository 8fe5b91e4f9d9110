package handle

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"mathcast/api/internal/store"
)

func (h *Handle) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeErr(w, http.StatusNotImplemented, "no_history", "history storage is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.history.List(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		log.Printf("http: history list: %v", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not load history")
		return
	}
	if items == nil {
		items = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handle) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeErr(w, http.StatusNotImplemented, "no_history", "history storage is not configured")
		return
	}
	id := r.PathValue("id")
	e, err := h.history.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "no history entry "+id)
	case err != nil:
		log.Printf("http: history get %s: %v", id, err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not load history entry")
	default:
		writeJSON(w, http.StatusOK, e)
	}
}

func (h *Handle) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeErr(w, http.StatusNotImplemented, "no_history", "history storage is not configured")
		return
	}
	id := r.PathValue("id")
	err := h.history.Delete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "no history entry "+id)
	case err != nil:
		log.Printf("http: history delete %s: %v", id, err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not delete history entry")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
