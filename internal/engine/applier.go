package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// applyOutcome is the per-transaction tally of a rule application pass.
type applyOutcome struct {
	failures []service.ItemFailure
	matches  int
	added    int
}

// ApplyRules evaluates the owner's active rules against their transactions and
// links the category of every matching rule. Re-running a pass never adds a
// link twice. Per-pair failures are recorded in the result; only failing to
// load rules, categories or transactions aborts the pass.
func (e *Engine) ApplyRules(ctx context.Context, ownerID string) (*service.ApplyResult, error) {
	start := time.Now()

	activeRules, err := e.storage.ListActiveCategorizationRules(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	categories, err := e.storage.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	categoriesByID := make(map[string]*model.Category, len(categories))
	for i := range categories {
		categoriesByID[categories[i].ID] = &categories[i]
	}

	transactions, err := e.storage.ListTransactions(ctx, ownerID, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if e.config.Scope == ScopeUncategorized {
		transactions = uncategorized(transactions)
	}

	result := &service.ApplyResult{
		TransactionsEvaluated: len(transactions),
	}

	// Rules whose category vanished are reported once and skipped.
	usable := make([]model.CategorizationRule, 0, len(activeRules))
	for _, rule := range activeRules {
		if _, ok := categoriesByID[rule.CategoryID]; !ok {
			result.Failures = append(result.Failures, service.ItemFailure{
				RuleID:  rule.ID,
				Message: fmt.Sprintf("rule targets missing category %s", rule.CategoryID),
			})
			continue
		}
		usable = append(usable, rule)
	}
	result.RulesEvaluated = len(usable)

	slog.Info("Applying rules",
		"owner_id", ownerID,
		"rules", len(usable),
		"transactions", len(transactions),
		"mode", e.config.Mode,
		"scope", e.config.Scope)

	outcomes := make([]applyOutcome, len(transactions))
	sem := make(chan struct{}, e.config.Workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)

dispatch:
	for i := range transactions {
		// Acquire semaphore
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[idx] = e.applyToTransaction(ctx, ownerID, usable, categoriesByID, transactions[idx])

			mu.Lock()
			done++
			e.report("apply", done, len(transactions))
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	for _, outcome := range outcomes {
		result.Matches += outcome.matches
		result.CategoriesAdded += outcome.added
		result.Failures = append(result.Failures, outcome.failures...)
	}
	result.Duration = time.Since(start)

	slog.Info("Rule application complete",
		"owner_id", ownerID,
		"matches", result.Matches,
		"categories_added", result.CategoriesAdded,
		"failures", len(result.Failures),
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) applyToTransaction(ctx context.Context, ownerID string, rules []model.CategorizationRule, categories map[string]*model.Category, txn model.Transaction) applyOutcome {
	var outcome applyOutcome

	for _, rule := range rules {
		if ctx.Err() != nil {
			return outcome
		}

		if !e.evaluator.Evaluate(ctx, rule, categories[rule.CategoryID], txn) {
			continue
		}
		outcome.matches++

		ruleID := rule.ID
		added, err := e.storage.AddTransactionCategory(ctx, ownerID, txn.ID, rule.CategoryID, model.AddedByRule, &ruleID)
		if err != nil {
			slog.Warn("failed to link category",
				"owner_id", ownerID,
				"transaction_id", txn.ID,
				"rule_id", rule.ID,
				"error", err)
			outcome.failures = append(outcome.failures, service.ItemFailure{
				TransactionID: txn.ID,
				RuleID:        rule.ID,
				Message:       err.Error(),
				Err:           err,
			})
		} else if added {
			outcome.added++
		}

		if e.config.Mode == ModeFirstMatch {
			break
		}
	}

	return outcome
}

func uncategorized(transactions []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if len(txn.Categories) == 0 {
			out = append(out, txn)
		}
	}
	return out
}
