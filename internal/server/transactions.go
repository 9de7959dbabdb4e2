package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/importer"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description"`
	Source      model.Source    `json:"source,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryIDs []string        `json:"categoryIds,omitempty"`
}

type categoriesRequest struct {
	CategoryIDs []string `json:"categoryIds"`
}

type importResponse struct {
	Imported  []model.Transaction `json:"imported"`
	RowErrors []rowError          `json:"rowErrors,omitempty"`
}

type rowError struct {
	Error string `json:"error"`
	Line  int    `json:"line"`
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	transactions, err := s.deps.Storage.ListTransactions(r.Context(), ownerFrom(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	txn := service.NewTransaction{
		Description: req.Description,
		Source:      req.Source,
		Amount:      req.Amount,
		CategoryIDs: req.CategoryIDs,
	}
	if strings.TrimSpace(req.Date) != "" {
		date, err := model.ParseDate(req.Date)
		if err != nil {
			writeError(w, common.NewValidationError("date", err.Error()))
			return
		}
		txn.Date = date
	}

	created, err := s.deps.Storage.CreateTransaction(r.Context(), ownerFrom(r), txn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.deps.Storage.GetTransaction(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Storage.DeleteTransaction(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setTransactionCategories(w http.ResponseWriter, r *http.Request) {
	var req categoriesRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	owner := ownerFrom(r)
	id := mux.Vars(r)["id"]
	if err := s.deps.Storage.SetTransactionCategories(r.Context(), owner, id, req.CategoryIDs); err != nil {
		writeError(w, err)
		return
	}

	txn, err := s.deps.Storage.GetTransaction(r.Context(), owner, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// importTransactions reads a CSV body, or an OFX body when format=ofx.
func (s *Server) importTransactions(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		result *importer.Result
		err    error
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		result, err = s.deps.Importer.ImportCSV(r.Context(), ownerFrom(r), body)
	case "ofx", "qfx":
		result, err = s.deps.Importer.ImportOFX(r.Context(), ownerFrom(r), body)
	default:
		err = common.NewValidationError("format", "must be csv or ofx, got "+strconv.Quote(format))
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := importResponse{Imported: result.Imported}
	for _, rowErr := range result.RowErrors {
		resp.RowErrors = append(resp.RowErrors, rowError{Error: rowErr.Err.Error(), Line: rowErr.Line})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) approveTransaction(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, model.ReviewApproved)
}

func (s *Server) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, model.ReviewRejected)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, status model.ReviewStatus) {
	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeJSON(w, r, &req, true) {
		return
	}

	owner := ownerFrom(r)
	id := mux.Vars(r)["id"]

	var (
		review *model.Review
		err    error
	)
	if status == model.ReviewApproved {
		review, err = s.deps.Reviews.Approve(r.Context(), owner, id, req.Notes)
	} else {
		review, err = s.deps.Reviews.Reject(r.Context(), owner, id, req.Notes)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func parseFilter(r *http.Request) (service.TransactionFilter, error) {
	var filter service.TransactionFilter
	query := r.URL.Query()

	parseDay := func(key string) (*time.Time, error) {
		value := query.Get(key)
		if value == "" {
			return nil, nil
		}
		day, err := model.ParseDate(value)
		if err != nil {
			return nil, common.NewValidationError(key, err.Error())
		}
		return &day, nil
	}

	var err error
	if filter.StartDate, err = parseDay("start"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseDay("end"); err != nil {
		return filter, err
	}

	if value := query.Get("flagged"); value != "" {
		flagged, err := strconv.ParseBool(value)
		if err != nil {
			return filter, common.NewValidationError("flagged", "must be true or false")
		}
		filter.IsFlagged = &flagged
	}

	filter.CategoryID = query.Get("category")

	for key, target := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		value := query.Get(key)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return filter, common.NewValidationError(key, "must be a non-negative integer")
		}
		*target = n
	}

	return filter, nil
}
