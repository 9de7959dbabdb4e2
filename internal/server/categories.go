package server

import (
	"net/http"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/gorilla/mux"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Storage.ListCategories(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, common.NewValidationError("name", "required"))
		return
	}

	category, err := s.deps.Storage.CreateCategory(r.Context(), ownerFrom(r), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Storage.DeleteCategory(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
