package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/pkg/model"
)

type registerActuatorRequest struct {
	Channels int `json:"channels"`
}

func (s *Server) handleRegisterActuator(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req registerActuatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Channels < 0 {
		respondError(w, reqID,
			model.NewValidationError("invalid channel count",
				model.FieldError{Field: "channels", Message: "channels must not be negative"}))
		return
	}

	respondCreated(w, reqID, s.producer.RegisterActuator(req.Channels))
}

type registerEventsRequest struct {
	ActuatorID string        `json:"actuator_id,omitempty"`
	Events     []model.Event `json:"events"`
}

type registeredEvent struct {
	Event model.Event `json:"event"`
	Added bool        `json:"added"`
}

type registerEventsResponse struct {
	ActuatorID string            `json:"actuator_id"`
	Accepted   int               `json:"accepted"`
	Events     []registeredEvent `json:"events"`
}

// handleRegisterEvents registers a batch of events. Duplicates and
// registrations after stop are not errors; they come back with added=false.
func (s *Server) handleRegisterEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req registerEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if len(req.Events) == 0 {
		respondError(w, reqID,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "events", Message: "at least one event is required"}))
		return
	}
	if details := validateEvents(req.Events); len(details) > 0 {
		respondError(w, reqID, model.NewValidationError("invalid events", details...))
		return
	}

	actuatorID := req.ActuatorID
	if actuatorID == "" {
		actuatorID = s.anonymous().ID
	}

	resp := registerEventsResponse{ActuatorID: actuatorID, Events: make([]registeredEvent, 0, len(req.Events))}
	for _, ev := range req.Events {
		got, added := s.producer.RegisterEvent(ev, actuatorID)
		if added {
			resp.Accepted++
		}
		resp.Events = append(resp.Events, registeredEvent{Event: got, Added: added})
	}
	respondCreated(w, reqID, resp)
}

// validateEvents rejects attach indices on unknown axes. Everything else an
// event can carry is accepted as-is.
func validateEvents(events []model.Event) []model.FieldError {
	var details []model.FieldError
	for i, ev := range events {
		for axis := range ev.AttachIndex {
			if !axis.Valid() {
				details = append(details, model.FieldError{
					Path:    fmt.Sprintf("events[%d].attach_index", i),
					Message: fmt.Sprintf("unknown axis %q", axis),
				})
			}
		}
	}
	return details
}

func (s *Server) handlePeekEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ev, ok := s.producer.Peek()
	if !ok {
		respondError(w, reqID, model.NewNotFoundError("event", "next"))
		return
	}
	respondOK(w, reqID, ev)
}

type statusResponse struct {
	Producer scheduler.Status `json:"producer"`
	Runner   any              `json:"runner,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := statusResponse{Producer: s.producer.Status()}
	if s.runner != nil {
		resp.Runner = s.runner.Status()
	}
	respondOK(w, reqID, resp)
}
