// Package review records review decisions on transactions and maintains the
// review queue.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// ErrInvalidTransition is returned when a review cannot move to the
// requested status. Only pending reviews may be decided.
var ErrInvalidTransition = errors.New("invalid review transition")

// Service implements the review workflow on top of storage.
type Service struct {
	storage service.Storage
	now     func() time.Time
}

// NewService creates a review service.
func NewService(storage service.Storage) *Service {
	return &Service{
		storage: storage,
		now:     time.Now,
	}
}

// Create records a review with any status. Flags are left untouched; use
// Approve to clear them.
func (s *Service) Create(ctx context.Context, ownerID, transactionID string, status model.ReviewStatus, notes string) (*model.Review, error) {
	review := &model.Review{
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Status:        status,
		Notes:         notes,
	}
	if status.Decided() {
		reviewedAt := s.now().UTC()
		review.ReviewedAt = &reviewedAt
	}

	if err := s.storage.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	slog.Info("review recorded",
		"owner_id", ownerID,
		"transaction_id", transactionID,
		"status", status)
	return review, nil
}

// Update decides a pending review. Decided reviews are history and cannot
// change; record a new review instead.
func (s *Service) Update(ctx context.Context, ownerID, reviewID string, status model.ReviewStatus, notes string) (*model.Review, error) {
	review, err := s.storage.GetReview(ctx, ownerID, reviewID)
	if err != nil {
		return nil, err
	}

	if review.Status != model.ReviewPending || !status.Decided() {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, review.Status, status)
	}

	reviewedAt := s.now().UTC()
	review.Status = status
	review.Notes = notes
	review.ReviewedAt = &reviewedAt

	if status == model.ReviewApproved {
		if err := s.storage.ApproveTransaction(ctx, review); err != nil {
			return nil, fmt.Errorf("failed to approve transaction: %w", err)
		}
		return review, nil
	}

	if err := s.storage.UpdateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return review, nil
}

// Approve records an approved review and clears the transaction's flags as
// one storage write. Later flagging passes skip the transaction.
func (s *Service) Approve(ctx context.Context, ownerID, transactionID, notes string) (*model.Review, error) {
	reviewedAt := s.now().UTC()
	review := &model.Review{
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Status:        model.ReviewApproved,
		Notes:         notes,
		ReviewedAt:    &reviewedAt,
	}

	if err := s.storage.ApproveTransaction(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to approve transaction: %w", err)
	}

	slog.Info("transaction approved",
		"owner_id", ownerID,
		"transaction_id", transactionID,
		"review_id", review.ID)
	return review, nil
}

// Reject records a rejected review. Flags are kept.
func (s *Service) Reject(ctx context.Context, ownerID, transactionID, notes string) (*model.Review, error) {
	return s.Create(ctx, ownerID, transactionID, model.ReviewRejected, notes)
}

// List returns the owner's review history, optionally narrowed to a status.
func (s *Service) List(ctx context.Context, ownerID string, status *model.ReviewStatus) ([]model.Review, error) {
	return s.storage.ListReviews(ctx, ownerID, status)
}

// Queue returns the transactions that still need a decision: flagged or
// uncategorized, and never approved.
func (s *Service) Queue(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	transactions, err := s.storage.ListTransactions(ctx, ownerID, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	var queue []model.Transaction
	for _, txn := range transactions {
		if txn.WasApproved {
			continue
		}
		if txn.IsFlagged() || len(txn.Categories) == 0 {
			queue = append(queue, txn)
		}
	}
	return queue, nil
}
