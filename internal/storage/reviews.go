package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

const reviewColumns = `id, transaction_id, owner_id, status, notes, reviewed_at, created_at`

// CreateReview records a review against one of the owner's transactions.
func (s *SQLiteStorage) CreateReview(ctx context.Context, review *model.Review) error {
	if err := validateReview(review); err != nil {
		return err
	}
	if err := validateScope(ctx, review.OwnerID, review.TransactionID); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertReviewTx(ctx, tx, review)
	})
}

// GetReview returns a review by id.
func (s *SQLiteStorage) GetReview(ctx context.Context, ownerID, id string) (*model.Review, error) {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM transaction_reviews WHERE id = ? AND owner_id = ?`, id, ownerID)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("review", id)
	}
	return review, err
}

// UpdateReview persists the status, notes and decision time of a review.
func (s *SQLiteStorage) UpdateReview(ctx context.Context, review *model.Review) error {
	if err := validateReview(review); err != nil {
		return err
	}
	if err := validateScope(ctx, review.OwnerID, review.ID); err != nil {
		return err
	}
	return updateReviewTx(ctx, s.db, review)
}

// ApproveTransaction clears every flag on the review's transaction and saves
// the approved review in the same database transaction, so a transaction is
// never marked approved while keeping its flags. A review without an id is
// inserted; one with an id is updated in place.
func (s *SQLiteStorage) ApproveTransaction(ctx context.Context, review *model.Review) error {
	if err := validateReview(review); err != nil {
		return err
	}
	if review.Status != model.ReviewApproved {
		return common.NewValidationError("status", fmt.Sprintf("approval needs status %s, got %s", model.ReviewApproved, review.Status))
	}
	if err := validateScope(ctx, review.OwnerID, review.TransactionID); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE transactions SET flags = '[]', updated_at = ? WHERE id = ? AND owner_id = ?`,
			time.Now().UTC(), review.TransactionID, review.OwnerID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear flags: %w", err)
		}
		if err := expectAffected(result, "transaction", review.TransactionID); err != nil {
			return err
		}

		if review.ID == "" {
			return insertReviewTx(ctx, tx, review)
		}
		return updateReviewTx(ctx, tx, review)
	})
}

func insertReviewTx(ctx context.Context, tx *sql.Tx, review *model.Review) error {
	if err := ensureTransactionOwned(ctx, tx, review.OwnerID, review.TransactionID); err != nil {
		return err
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, review.TransactionID, review.OwnerID, string(review.Status),
		review.Notes, nullableTime(review.ReviewedAt), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	review.ID = id
	review.CreatedAt = createdAt
	return nil
}

func updateReviewTx(ctx context.Context, q querier, review *model.Review) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transaction_reviews SET status = ?, notes = ?, reviewed_at = ?
		WHERE id = ? AND owner_id = ? AND transaction_id = ?`,
		string(review.Status), review.Notes, nullableTime(review.ReviewedAt),
		review.ID, review.OwnerID, review.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return expectAffected(result, "review", review.ID)
}

// ListReviews returns the owner's reviews, oldest first, optionally narrowed
// to one status.
func (s *SQLiteStorage) ListReviews(ctx context.Context, ownerID string, status *model.ReviewStatus) ([]model.Review, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}

	query := `SELECT ` + reviewColumns + ` FROM transaction_reviews WHERE owner_id = ?`
	args := []any{ownerID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []model.Review
	for rows.Next() {
		review, scanErr := scanReview(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

func scanReview(row rowScanner) (*model.Review, error) {
	var (
		review     model.Review
		status     string
		reviewedAt sql.NullTime
	)
	err := row.Scan(&review.ID, &review.TransactionID, &review.OwnerID, &status,
		&review.Notes, &reviewedAt, &review.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}

	review.Status = model.ReviewStatus(status)
	if reviewedAt.Valid {
		ts := reviewedAt.Time
		review.ReviewedAt = &ts
	}
	return &review, nil
}

func nullableTime(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.UTC()
}
