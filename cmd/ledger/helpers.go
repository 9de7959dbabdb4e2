package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/engine"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// initStorage opens the configured database and applies pending migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requireOwner returns the configured owner id.
func requireOwner() (string, error) {
	owner := strings.TrimSpace(cfg.Owner)
	if owner == "" {
		return "", fmt.Errorf("%w: set --owner or LEDGER_OWNER", common.ErrMissingConfig)
	}
	return owner, nil
}

// newEngine builds the rule and flagging engine with the configured
// classifier. The returned classifier must be closed by the caller.
func newEngine(store service.Storage) (*engine.Engine, llm.Classifier, error) {
	classifier, err := llm.NewClassifier(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	evaluator := rules.NewEvaluator(classifier, evaluatorConfig())
	eng, err := engine.NewWithConfig(store, evaluator, cfg.Engine)
	if err != nil {
		_ = classifier.Close()
		return nil, nil, err
	}
	return eng, classifier, nil
}

// evaluatorConfig bounds one ai condition by the classifier's full retry budget.
func evaluatorConfig() rules.Config {
	config := rules.DefaultConfig()
	if cfg.LLM.Timeout > 0 {
		attempts := time.Duration(cfg.LLM.MaxRetries + 1)
		config.AITimeout = (cfg.LLM.Timeout + cfg.LLM.RetryDelay) * attempts
	}
	return config
}

// categoryNames maps category ids to names for display.
func categoryNames(ctx context.Context, store service.Storage, owner string) (map[string]string, error) {
	categories, err := store.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}

// resolveCategories turns category ids or names into ids. Names match
// case-insensitively.
func resolveCategories(ctx context.Context, store service.Storage, owner string, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	categories, err := store.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		cat := findCategory(categories, ref)
		if cat == nil {
			return nil, common.NotFound("category", ref)
		}
		ids = append(ids, cat.ID)
	}
	return ids, nil
}

func findCategory(categories []model.Category, ref string) *model.Category {
	ref = strings.TrimSpace(ref)
	for i := range categories {
		if categories[i].ID == ref {
			return &categories[i]
		}
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, ref) {
			return &categories[i]
		}
	}
	return nil
}

// parseOptionalDate parses a day or returns nil for an empty value.
func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	day, err := model.ParseDate(value)
	if err != nil {
		return nil, common.NewValidationError("date", fmt.Sprintf("not a date: %q", value))
	}
	return &day, nil
}

// autoSnapshot snapshots the database before a bulk pass when enabled. A
// failed snapshot is logged and the pass continues.
func autoSnapshot(ctx context.Context, store *storage.SQLiteStorage, operation string) {
	if !cfg.Snapshots.Auto {
		return
	}
	if _, err := store.AutoSnapshot(ctx, operation); err != nil {
		slog.Warn("Continuing without a snapshot", "operation", operation, "error", err)
	}
}

// resolveTransactionID expands a transaction id or a unique id prefix, as
// shown by the list commands, to the full id.
func resolveTransactionID(ctx context.Context, store service.Storage, owner, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", common.NotFound("transaction", ref)
	}
	if _, err := store.GetTransaction(ctx, owner, ref); err == nil {
		return ref, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	transactions, err := store.ListTransactions(ctx, owner, service.TransactionFilter{})
	if err != nil {
		return "", fmt.Errorf("failed to list transactions: %w", err)
	}
	var match string
	for _, txn := range transactions {
		if !strings.HasPrefix(txn.ID, ref) {
			continue
		}
		if match != "" {
			return "", common.NewValidationError("transaction", fmt.Sprintf("id prefix %q is ambiguous", ref))
		}
		match = txn.ID
	}
	if match == "" {
		return "", common.NotFound("transaction", ref)
	}
	return match, nil
}
