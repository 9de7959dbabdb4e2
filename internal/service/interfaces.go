// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	IsFlagged  *bool
	CategoryID string
	Limit      int
	Offset     int
}

// NewTransaction carries the fields supplied when a transaction is created.
type NewTransaction struct {
	Date        time.Time
	Description string
	Source      model.Source
	Amount      decimal.Decimal
	CategoryIDs []string
}

// Storage defines the contract for our persistence layer. Every method is
// scoped by owner; rows belonging to another owner behave as missing.
type Storage interface {
	// Transaction operations
	ListTransactions(ctx context.Context, ownerID string, filter TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, id string) (*model.Transaction, error)
	CreateTransaction(ctx context.Context, ownerID string, txn NewTransaction) (*model.Transaction, error)
	ImportTransactions(ctx context.Context, ownerID string, txns []NewTransaction) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, id string) error
	SetTransactionCategories(ctx context.Context, ownerID, transactionID string, categoryIDs []string) error
	AddTransactionCategory(ctx context.Context, ownerID, transactionID, categoryID string, addedBy model.Provenance, ruleID *string) (bool, error)
	AddTransactionFlags(ctx context.Context, ownerID, transactionID string, flags ...model.Flag) ([]model.Flag, error)

	// Category operations
	CreateCategory(ctx context.Context, ownerID, name, description string) (*model.Category, error)
	GetCategory(ctx context.Context, ownerID, id string) (*model.Category, error)
	ListCategories(ctx context.Context, ownerID string) ([]model.Category, error)
	UpdateCategory(ctx context.Context, ownerID, id, name, description string) error
	DeleteCategory(ctx context.Context, ownerID, id string) error

	// Categorization rule operations
	CreateCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error
	GetCategorizationRule(ctx context.Context, ownerID, id string) (*model.CategorizationRule, error)
	ListCategorizationRules(ctx context.Context, ownerID string) ([]model.CategorizationRule, error)
	ListActiveCategorizationRules(ctx context.Context, ownerID string) ([]model.CategorizationRule, error)
	UpdateCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error
	DeleteCategorizationRule(ctx context.Context, ownerID, id string) error

	// Anomaly rule operations
	CreateAnomalyRule(ctx context.Context, rule *model.AnomalyRule) error
	ListAnomalyRules(ctx context.Context, ownerID string) ([]model.AnomalyRule, error)
	SetAnomalyRuleActive(ctx context.Context, ownerID, id string, active bool) error
	DeleteAnomalyRule(ctx context.Context, ownerID, id string) error

	// Review operations
	CreateReview(ctx context.Context, review *model.Review) error
	GetReview(ctx context.Context, ownerID, id string) (*model.Review, error)
	UpdateReview(ctx context.Context, review *model.Review) error
	ApproveTransaction(ctx context.Context, review *model.Review) error
	ListReviews(ctx context.Context, ownerID string, status *model.ReviewStatus) ([]model.Review, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Decision is the answer of the AI classification collaborator.
type Decision string

// Classification decisions. Unavailable covers every failure mode so callers
// never have to tell "no" apart from "could not tell".
const (
	DecisionApply       Decision = "apply"
	DecisionDoNotApply  Decision = "do not apply"
	DecisionUnavailable Decision = "unavailable"
)

// ClassifyRequest is the payload sent to the AI classification collaborator.
type ClassifyRequest struct {
	Category               ClassifyCategory `json:"category"`
	TransactionDate        string           `json:"transaction_date"`
	TransactionDescription string           `json:"transaction_description"`
	TransactionAmount      string           `json:"transaction_amount"`
	AIPrompt               string           `json:"ai_prompt,omitempty"`
}

// ClassifyCategory describes the candidate category in a ClassifyRequest.
type ClassifyCategory struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ClassifyResponse is the wire response of the classification endpoint.
type ClassifyResponse struct {
	Decision Decision `json:"decision"`
}

// ItemFailure records a per-item failure that did not abort a pass.
type ItemFailure struct {
	Err           error  `json:"-"`
	TransactionID string `json:"transactionId"`
	RuleID        string `json:"ruleId,omitempty"`
	Message       string `json:"message"`
}

// ApplyResult summarizes one rule application pass.
type ApplyResult struct {
	Failures              []ItemFailure `json:"failures,omitempty"`
	TransactionsEvaluated int           `json:"transactionsEvaluated"`
	RulesEvaluated        int           `json:"rulesEvaluated"`
	Matches               int           `json:"matches"`
	CategoriesAdded       int           `json:"categoriesAdded"`
	Duration              time.Duration `json:"duration"`
}

// Partial reports whether some pairs failed.
func (r *ApplyResult) Partial() bool {
	return len(r.Failures) > 0
}

// FlagResult summarizes one anomaly flagging pass.
type FlagResult struct {
	FlagsAdded      map[model.Flag]int `json:"flagsAdded"`
	Failures        []ItemFailure      `json:"failures,omitempty"`
	Processed       int                `json:"processed"`
	SkippedApproved int                `json:"skippedApproved"`
	Flagged         int                `json:"flagged"`
	Duration        time.Duration      `json:"duration"`
}

// Partial reports whether some transactions failed.
func (r *FlagResult) Partial() bool {
	return len(r.Failures) > 0
}
