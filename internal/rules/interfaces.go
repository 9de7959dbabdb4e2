// Package rules evaluates categorization rule conditions against transactions.
package rules

import (
	"context"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// Classifier answers whether a category applies to a transaction for an
// ai condition. Implementations never fail: every failure mode is reported
// as service.DecisionUnavailable.
type Classifier interface {
	Classify(ctx context.Context, req service.ClassifyRequest) service.Decision
}
