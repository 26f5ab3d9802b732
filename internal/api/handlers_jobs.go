package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/msadik/chatrelay/internal/queue"
)

type JobHandler struct {
	queue *queue.Queue
}

func NewJobHandler(q *queue.Queue) *JobHandler {
	return &JobHandler{queue: q}
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Counts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Counts())
}
