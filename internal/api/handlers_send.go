package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/provider"
	"github.com/msadik/chatrelay/internal/queue"
)

const maxBodySize = 256 * 1024 // 256KB

type SendHandler struct {
	prov  provider.Provider
	coord *queue.Coordinator
}

func NewSendHandler(prov provider.Provider, coord *queue.Coordinator) *SendHandler {
	return &SendHandler{prov: prov, coord: coord}
}

type sendRequest struct {
	Target   string `json:"target"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
}

// Send is the direct pass-through single send: no queue, the provider's
// answer comes straight back to the caller.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "target and body are required")
		return
	}

	receipt, err := h.prov.Send(r.Context(), provider.OutboundMessage{
		Target:   req.Target,
		Body:     req.Body,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		if errors.Is(err, models.ErrProviderNotReady) {
			writeError(w, http.StatusServiceUnavailable, "provider not ready")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

type batchRequest struct {
	Items []queue.BatchItem `json:"items"`
}

// SendBatch enqueues up to the configured batch limit and acknowledges the
// enqueue, not the delivery.
func (h *SendHandler) SendBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipts, err := h.coord.SubmitBatch(r.Context(), req.Items)
	if err != nil {
		if models.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue batch")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"enqueued": len(receipts),
		"jobs":     receipts,
	})
}
