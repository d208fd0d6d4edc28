package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Producer  string `json:"producer"`
	Runner    string `json:"runner"`
	Journal   string `json:"journal"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	producer := "running"
	if st := s.producer.Status(); st.Stopped {
		producer = "stopped"
	} else if st.Paused {
		producer = "paused"
	}
	runnerState := "unavailable"
	if s.runner != nil {
		runnerState = s.runner.Status().State.String()
	}
	journal := "disabled"
	if s.journal != nil {
		journal = "enabled"
	}

	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Producer:  producer,
		Runner:    runnerState,
		Journal:   journal,
	})
}
