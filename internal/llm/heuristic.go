package llm

import (
	"context"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// HeuristicClassifier answers classification requests without a network hop.
// A category applies when its name, or any word of the rule prompt, occurs in
// the transaction description, ignoring case.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates the keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify never returns service.DecisionUnavailable.
func (HeuristicClassifier) Classify(_ context.Context, req service.ClassifyRequest) service.Decision {
	description := strings.ToLower(req.TransactionDescription)
	if description == "" {
		return service.DecisionDoNotApply
	}

	if name := strings.ToLower(strings.TrimSpace(req.Category.Name)); name != "" && strings.Contains(description, name) {
		return service.DecisionApply
	}

	for _, word := range strings.Fields(strings.ToLower(req.AIPrompt)) {
		if strings.Contains(description, word) {
			return service.DecisionApply
		}
	}

	return service.DecisionDoNotApply
}

// Close is a no-op so both classifiers share a lifecycle.
func (HeuristicClassifier) Close() error {
	return nil
}
