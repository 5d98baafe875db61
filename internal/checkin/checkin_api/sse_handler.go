package checkin_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-ticket-lifecycle/internal/sse"
)

// StreamCheckins streams check-in outcomes as Server-Sent Events. With
// ?eventId= only that event's outcomes are sent, otherwise all of them.
func (h *Handler) StreamCheckins(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		eventID = sse.AllEvents
	}

	setupSSEHeaders(w)
	// streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Create a context that cancels when the client disconnects
	ctx := r.Context()
	outcomes := h.Emitter.Subscribe(ctx, eventID)

	connected, _ := json.Marshal(map[string]string{"status": "connected", "eventId": eventID})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to check-in stream for event %q", eventID))

	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for event %q", eventID))
				return
			}

			jsonData, err := json.Marshal(o)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize check-in outcome: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", o.Stage, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from check-in stream for event %q", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "0")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
