package server

import (
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/gorilla/mux"
)

type reviewRequest struct {
	TransactionID string             `json:"transactionId"`
	Status        model.ReviewStatus `json:"status"`
	Notes         string             `json:"notes,omitempty"`
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	var status *model.ReviewStatus
	if value := r.URL.Query().Get("status"); value != "" {
		parsed, err := model.ParseReviewStatus(value)
		if err != nil {
			writeError(w, common.NewValidationError("status", err.Error()))
			return
		}
		status = &parsed
	}

	reviews, err := s.deps.Reviews.List(r.Context(), ownerFrom(r), status)
	if err != nil {
		writeError(w, err)
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Status == "" {
		req.Status = model.ReviewPending
	}

	review, err := s.deps.Reviews.Create(r.Context(), ownerFrom(r), req.TransactionID, req.Status, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) updateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	review, err := s.deps.Reviews.Update(r.Context(), ownerFrom(r), mux.Vars(r)["id"], req.Status, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) reviewQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.deps.Reviews.Queue(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if queue == nil {
		queue = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, queue)
}
