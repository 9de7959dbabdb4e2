package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, req service.ClassifyRequest) service.Decision {
	args := m.Called(ctx, req)
	return args.Get(0).(service.Decision)
}

// flakyStorage fails category links and flag writes for selected transactions.
type flakyStorage struct {
	service.Storage
	failFor map[string]bool
}

var errInjected = errors.New("injected failure")

func (f *flakyStorage) AddTransactionCategory(ctx context.Context, ownerID, transactionID, categoryID string, addedBy model.Provenance, ruleID *string) (bool, error) {
	if f.failFor[transactionID] {
		return false, errInjected
	}
	return f.Storage.AddTransactionCategory(ctx, ownerID, transactionID, categoryID, addedBy, ruleID)
}

func (f *flakyStorage) AddTransactionFlags(ctx context.Context, ownerID, transactionID string, flags ...model.Flag) ([]model.Flag, error) {
	if f.failFor[transactionID] {
		return nil, errInjected
	}
	return f.Storage.AddTransactionFlags(ctx, ownerID, transactionID, flags...)
}

func newEngine(t *testing.T, store service.Storage, classifier rules.Classifier, mutate func(*Config)) *Engine {
	t.Helper()
	config := DefaultConfig()
	if mutate != nil {
		mutate(&config)
	}
	e, err := NewWithConfig(store, rules.NewEvaluator(classifier, rules.DefaultConfig()), config)
	require.NoError(t, err)
	return e
}

func descriptionContains(value string) model.Condition {
	return model.Condition{Type: model.ConditionDescription, Operator: model.OpContains, Value: value}
}

func amountLessThan(value string) model.Condition {
	return model.Condition{Type: model.ConditionAmount, Operator: model.OpLessThan, Value: value}
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	config.Workers = 0
	require.NoError(t, config.Validate())
	assert.Equal(t, 1, config.Workers)

	config.Mode = "some"
	assert.ErrorIs(t, config.Validate(), common.ErrInvalidConfig)

	config = DefaultConfig()
	config.Order = "random"
	assert.ErrorIs(t, config.Validate(), common.ErrInvalidConfig)
}

func TestApplyRulesIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee", "Small")
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	db.Rule(db.CategoryID("Small"), 2, amountLessThan("20"))

	latte := db.Transaction("4.50", "Blue Bottle Coffee", "2024-01-02")
	rent := db.Transaction("1800", "Rent", "2024-01-01")

	e := newEngine(t, db.Storage, nil, nil)
	ctx := context.Background()

	first, err := e.ApplyRules(ctx, db.Owner)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TransactionsEvaluated)
	assert.Equal(t, 2, first.RulesEvaluated)
	assert.Equal(t, 2, first.Matches)
	assert.Equal(t, 2, first.CategoriesAdded)
	assert.False(t, first.Partial())

	after := db.Reload(latte.ID)
	assert.ElementsMatch(t, []string{db.CategoryID("Coffee"), db.CategoryID("Small")}, after.CategoryIDs())
	for _, link := range after.Categories {
		assert.Equal(t, model.AddedByRule, link.AddedBy)
		require.NotNil(t, link.RuleID)
	}
	assert.Empty(t, db.Reload(rent.ID).Categories)

	second, err := e.ApplyRules(ctx, db.Owner)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Matches)
	assert.Equal(t, 0, second.CategoriesAdded)
	assert.ElementsMatch(t, after.CategoryIDs(), db.Reload(latte.ID).CategoryIDs())
}

func TestApplyRulesFirstMatch(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee", "Small")
	db.Rule(db.CategoryID("Small"), 5, amountLessThan("20"))
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	latte := db.Transaction("4.50", "Coffee", "2024-01-02")

	e := newEngine(t, db.Storage, nil, func(c *Config) { c.Mode = ModeFirstMatch })
	result, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matches)
	assert.Equal(t, []string{db.CategoryID("Coffee")}, db.Reload(latte.ID).CategoryIDs())
}

func TestApplyRulesUncategorizedScope(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee", "Manual")
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	tagged := db.Transaction("3", "Coffee beans", "2024-01-02", db.CategoryID("Manual"))
	bare := db.Transaction("3", "Coffee cart", "2024-01-02")

	e := newEngine(t, db.Storage, nil, func(c *Config) { c.Scope = ScopeUncategorized })
	result, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsEvaluated)
	assert.Equal(t, []string{db.CategoryID("Manual")}, db.Reload(tagged.ID).CategoryIDs())
	assert.Equal(t, []string{db.CategoryID("Coffee")}, db.Reload(bare.ID).CategoryIDs())
}

func TestApplyRulesSkipsInactiveAndOtherOwners(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee")
	rule := db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	rule.IsActive = false
	require.NoError(t, db.Storage.UpdateCategorizationRule(context.Background(), rule))

	mine := db.Transaction("3", "Coffee", "2024-01-02")
	theirs := db.TransactionFor("someone-else", "3", "Coffee", "2024-01-02")

	e := newEngine(t, db.Storage, nil, nil)
	result, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RulesEvaluated)
	assert.Empty(t, db.Reload(mine.ID).Categories)

	other, err := db.Storage.GetTransaction(context.Background(), "someone-else", theirs.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Categories)
}

func TestApplyRulesWithUnavailableAI(t *testing.T) {
	db := testutil.SetupTestDB(t, "Streaming", "Coffee")
	db.Rule(db.CategoryID("Streaming"), 1, model.Condition{Type: model.ConditionAI, AIPrompt: "streaming services"})
	db.Rule(db.CategoryID("Coffee"), 2, descriptionContains("coffee"))

	netflix := db.Transaction("15.99", "NETFLIX.COM", "2024-01-02")
	latte := db.Transaction("4.50", "Coffee", "2024-01-02")

	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(service.DecisionUnavailable)

	e := newEngine(t, db.Storage, classifier, nil)
	result, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.False(t, result.Partial())
	assert.Empty(t, db.Reload(netflix.ID).Categories)
	assert.Equal(t, []string{db.CategoryID("Coffee")}, db.Reload(latte.ID).CategoryIDs())
	classifier.AssertNumberOfCalls(t, "Classify", 2)
}

func TestApplyRulesRecordsPairFailures(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee")
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	broken := db.Transaction("3", "Coffee one", "2024-01-02")
	fine := db.Transaction("3", "Coffee two", "2024-01-03")

	store := &flakyStorage{Storage: db.Storage, failFor: map[string]bool{broken.ID: true}}
	e := newEngine(t, store, nil, nil)

	result, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.True(t, result.Partial())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID, result.Failures[0].TransactionID)
	assert.ErrorIs(t, result.Failures[0].Err, errInjected)
	assert.Equal(t, 1, result.CategoriesAdded)
	assert.Equal(t, []string{db.CategoryID("Coffee")}, db.Reload(fine.ID).CategoryIDs())
}

func TestApplyRulesCancelled(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee")
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	db.Transaction("3", "Coffee", "2024-01-02")

	e := newEngine(t, db.Storage, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.ApplyRules(ctx, db.Owner)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestApplyRulesReportsProgress(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee")
	db.Rule(db.CategoryID("Coffee"), 1, descriptionContains("coffee"))
	for i := 0; i < 5; i++ {
		db.Transaction("3", "Coffee", "2024-01-02")
	}

	var (
		mu    sync.Mutex
		calls []int
	)
	e := newEngine(t, db.Storage, nil, nil).WithProgress(func(stage string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "apply", stage)
		assert.Equal(t, 5, total)
		calls = append(calls, done)
	})

	_, err := e.ApplyRules(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestEngineHonorsThrottle(t *testing.T) {
	db := testutil.SetupTestDB(t, "Food")
	db.Transaction("1", "a", "2024-01-01", db.CategoryID("Food"))
	db.Transaction("1", "b", "2024-01-01", db.CategoryID("Food"))
	db.Transaction("1", "c", "2024-01-01", db.CategoryID("Food"))

	e := newEngine(t, db.Storage, nil, func(c *Config) { c.Throttle = 20 * time.Millisecond })
	start := time.Now()
	_, err := e.FlagOwner(context.Background(), db.Owner)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
