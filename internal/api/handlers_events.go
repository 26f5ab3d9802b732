package api

import (
	"encoding/json"
	"net/http"

	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/webhook"
)

type EventHandler struct {
	dispatcher *webhook.Dispatcher
}

func NewEventHandler(d *webhook.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

type testEventRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// TestEvent fires a synthetic event through the dispatcher so operators can
// verify their callback endpoint end to end.
func (h *EventHandler) TestEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req testEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{"ping":true}`)
	}

	id := h.dispatcher.Dispatch(r.Context(), models.EventTest, req.Payload)
	if id == "" {
		writeError(w, http.StatusConflict, "webhook notifications are disabled")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"record_id": id})
}
