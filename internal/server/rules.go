package server

import (
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/gorilla/mux"
)

// ruleRequest is the flat wire shape of a categorization rule.
type ruleRequest struct {
	model.Condition
	IsActive   *bool  `json:"isActive,omitempty"`
	CategoryID string `json:"categoryId"`
	Priority   int    `json:"priority"`
}

type ruleResponse struct {
	model.CategorizationRule
	Explanation string `json:"explanation"`
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	list, err := s.deps.Storage.ListCategorizationRules(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	categories, err := s.deps.Storage.ListCategories(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	resp := make([]ruleResponse, 0, len(list))
	for _, rule := range list {
		resp = append(resp, ruleResponse{
			CategorizationRule: rule,
			Explanation:        rules.Explain(rule, names[rule.CategoryID]),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	rule := &model.CategorizationRule{
		OwnerID:    ownerFrom(r),
		CategoryID: req.CategoryID,
		Condition:  req.Condition,
		Priority:   req.Priority,
		IsActive:   req.IsActive == nil || *req.IsActive,
	}
	if err := s.deps.Storage.CreateCategorizationRule(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Storage.DeleteCategorizationRule(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyRules(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Engine.ApplyRules(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) runFlagger(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Engine.FlagOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
