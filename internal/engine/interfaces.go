package engine

import (
	"context"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// RuleEvaluator decides whether a categorization rule matches a transaction.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, rule model.CategorizationRule, category *model.Category, txn model.Transaction) bool
}

// ProgressFunc is called after each transaction of a pass. stage is
// "apply" or "flag".
type ProgressFunc func(stage string, done, total int)
