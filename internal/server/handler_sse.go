package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/edaq/pkg/model"
)

// sseHeartbeat is how often an idle frame stream writes a comment line.
const sseHeartbeat = 15 * time.Second

// frameSummary is a frame without its raw data, which can be large.
type frameSummary struct {
	Event  model.Event    `json:"event"`
	Values map[string]any `json:"values,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// handleSSEFrames streams every frame the runner emits via Server-Sent Events.
// GET /api/v1/sse/frames
func (s *Server) handleSSEFrames(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.hub == nil {
		respondError(w, reqID, model.NewNotFoundError("stream", "frames"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sub := s.hub.Subscribe("sse-" + reqID)
	defer sub.Close()

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	if err := sendSSEEvent(w, flusher, "init", s.producer.Status()); err != nil {
		s.logger.Debug("sse client disconnected", "request_id", reqID, "error", err)
		return
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case f, ok := <-sub.C:
			if !ok {
				sendSSEEvent(w, flusher, "complete", s.producer.Status())
				return
			}
			summary := frameSummary{Event: f.Event, Values: f.Result.Values, Meta: f.Meta}
			if err := sendSSEEvent(w, flusher, "frame", summary); err != nil {
				s.logger.Debug("sse client disconnected", "request_id", reqID)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
