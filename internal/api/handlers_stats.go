package api

import (
	"net/http"

	"github.com/msadik/chatrelay/internal/provider"
	"github.com/msadik/chatrelay/internal/storage"
)

type StatsHandler struct {
	store storage.Storage
	prov  provider.Provider
}

func NewStatsHandler(store storage.Storage, prov provider.Provider) *StatsHandler {
	return &StatsHandler{store: store, prov: prov}
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": string(h.prov.Status()),
	})
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
