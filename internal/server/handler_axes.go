package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/edaq/pkg/model"
)

type axisResponse struct {
	Axis   model.Axis `json:"axis"`
	Values []any      `json:"values"`
}

func (s *Server) handleListAxes(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	axes := make([]axisResponse, 0, len(model.AllAxes))
	for _, a := range model.AllAxes {
		axes = append(axes, axisResponse{Axis: a, Values: nonNil(s.producer.Values(a))})
	}
	respondOK(w, reqID, axes)
}

func (s *Server) handleGetAxis(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	a := model.Axis(chi.URLParam(r, "axis"))
	if !a.Valid() {
		respondError(w, reqID, model.NewNotFoundError("axis", string(a)))
		return
	}
	respondOK(w, reqID, axisResponse{Axis: a, Values: nonNil(s.producer.Values(a))})
}

// nonNil keeps empty registries rendering as [] rather than null.
func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
