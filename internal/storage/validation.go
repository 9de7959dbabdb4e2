// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateScope checks the context and the owner plus any required ids.
func validateScope(ctx context.Context, ownerID string, ids ...string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return err
	}
	for _, id := range ids {
		if err := validateString(id, "id"); err != nil {
			return err
		}
	}
	return nil
}

// validateNewTransaction validates a transaction before insert.
func validateNewTransaction(txn *service.NewTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Source == "" {
		txn.Source = model.SourceManual
	}
	if !txn.Source.Valid() {
		return common.NewValidationError("source", fmt.Sprintf("unknown source %q", txn.Source))
	}
	for _, id := range txn.CategoryIDs {
		if strings.TrimSpace(id) == "" {
			return common.NewValidationError("categoryIds", "contains an empty id")
		}
	}
	return nil
}

// validateFilter checks the date range of a transaction filter.
func validateFilter(filter service.TransactionFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return common.NewValidationError("limit", "limit and offset must not be negative")
	}
	return nil
}

// validateReview validates a review before insert or update.
func validateReview(review *model.Review) error {
	if review == nil {
		return fmt.Errorf("%w: review", ErrNilParameter)
	}
	if _, err := model.ParseReviewStatus(string(review.Status)); err != nil {
		return common.NewValidationError("status", err.Error())
	}
	return nil
}
