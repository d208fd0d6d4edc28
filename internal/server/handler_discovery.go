package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "edaq API",
		Version:     "v1",
		Description: "Timed scheduling for event-driven acquisition",
		Endpoints: []endpointInfo{
			{"/api/v1/status", []string{"GET"}, "Producer and runner state"},
			{"/api/v1/actuators", []string{"POST"}, "Register an actuator and allocate its channel block"},
			{"/api/v1/events", []string{"POST"}, "Register events, optionally on behalf of an actuator"},
			{"/api/v1/events/next", []string{"GET"}, "Earliest pending event"},
			{"/api/v1/control/pause", []string{"POST"}, "Pause deliveries and executions"},
			{"/api/v1/control/resume", []string{"POST"}, "Resume deliveries and executions"},
			{"/api/v1/control/stop", []string{"POST"}, "Stop the producer; the runner drains what was delivered"},
			{"/api/v1/control/cancel", []string{"POST"}, "Cancel the runner after the in-flight event"},
			{"/api/v1/axes", []string{"GET"}, "Discovered values of every axis"},
			{"/api/v1/axes/{axis}", []string{"GET"}, "Discovered values of one axis (t, p, g, c, z)"},
			{"/api/v1/runs", []string{"GET"}, "Journaled runs"},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single run"},
			{"/api/v1/runs/{id}/executions", []string{"GET"}, "Executed events of a run"},
			{"/api/v1/sse/frames", []string{"GET"}, "Stream of executed frames"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
