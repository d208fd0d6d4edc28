package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/edaq/pkg/model"
)

// listOptions reads limit, offset and state from the query string. An
// unknown state is a validation error rather than an empty page.
func listOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	if raw := q.Get("state"); raw != "" {
		state, err := model.ParseRunState(raw)
		if err != nil {
			return opts, model.NewValidationError("invalid state filter",
				model.FieldError{Field: "state", Message: err.Error()})
		}
		opts.State = state
	}
	opts.Clamp()
	return opts, nil
}

func (s *Server) requireJournal(w http.ResponseWriter, reqID string) bool {
	if s.journal == nil {
		respondError(w, reqID, model.NewNotFoundError("journal", "default"))
		return false
	}
	return true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireJournal(w, reqID) {
		return
	}

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}
	runs, total, err := s.journal.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondList(w, reqID, runs, total, opts)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireJournal(w, reqID) {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := s.journal.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireJournal(w, reqID) {
		return
	}
	id := chi.URLParam(r, "id")

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}
	recs, total, err := s.journal.ListExecutions(r.Context(), id, opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondList(w, reqID, recs, total, opts)
}
