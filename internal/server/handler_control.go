package server

import (
	"net/http"

	"github.com/me/edaq/pkg/model"
)

type controlResponse struct {
	Action string `json:"action"`
	State  any    `json:"state"`
}

// Pause and resume apply to both schedulers so that their paused durations
// stay aligned.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.producer.Pause()
	if s.runner != nil {
		s.runner.Pause()
	}
	respondOK(w, reqID, controlResponse{Action: "pause", State: s.producer.Status()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.producer.Resume()
	if s.runner != nil {
		s.runner.Resume()
	}
	respondOK(w, reqID, controlResponse{Action: "resume", State: s.producer.Status()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.producer.Stop()
	respondOK(w, reqID, controlResponse{Action: "stop", State: s.producer.Status()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.runner == nil {
		respondError(w, reqID, model.NewConflictError("no runner attached to this server"))
		return
	}
	s.runner.Cancel()
	respondOK(w, reqID, controlResponse{Action: "cancel", State: s.runner.Status()})
}
