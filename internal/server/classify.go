package server

import (
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// classify serves the classification collaborator contract. An unavailable
// decision is reported as 503 with a "do not apply" body so naive callers
// stay on the safe side.
func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req service.ClassifyRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if s.deps.Classifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, service.ClassifyResponse{Decision: service.DecisionDoNotApply})
		return
	}

	decision := s.deps.Classifier.Classify(r.Context(), req)
	if decision == service.DecisionUnavailable {
		writeJSON(w, http.StatusServiceUnavailable, service.ClassifyResponse{Decision: service.DecisionDoNotApply})
		return
	}
	writeJSON(w, http.StatusOK, service.ClassifyResponse{Decision: decision})
}
