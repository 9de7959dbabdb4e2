package model

import (
	"fmt"
	"time"
)

// ReviewStatus is the state of a transaction review.
type ReviewStatus string

// Review states.
const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus validates a review status name.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return ReviewStatus(s), nil
	}
	return "", fmt.Errorf("unknown review status %q", s)
}

// Decided reports whether the status is terminal.
func (s ReviewStatus) Decided() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// Review is one entry in a transaction's review history.
type Review struct {
	CreatedAt     time.Time    `json:"createdAt"`
	ReviewedAt    *time.Time   `json:"reviewedAt,omitempty"`
	ID            string       `json:"id"`
	TransactionID string       `json:"transactionId"`
	OwnerID       string       `json:"ownerId"`
	Status        ReviewStatus `json:"status"`
	Notes         string       `json:"notes,omitempty"`
}
