package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/msadik/chatrelay/internal/webhook"
)

type DeliveryHandler struct {
	ledger *webhook.Ledger
}

func NewDeliveryHandler(ledger *webhook.Ledger) *DeliveryHandler {
	return &DeliveryHandler{ledger: ledger}
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get delivery record")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "delivery record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
