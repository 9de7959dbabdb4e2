package rules

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
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

func txnOn(t *testing.T, amount, description, date string) model.Transaction {
	t.Helper()
	txn := model.Transaction{
		ID:          "txn-1",
		Amount:      decimal.RequireFromString(amount),
		Description: description,
	}
	if date != "" {
		d, err := model.ParseDate(date)
		require.NoError(t, err)
		txn.Date = d
	}
	return txn
}

func strPtr(s string) *string { return &s }

func TestEvaluateDescription(t *testing.T) {
	e := NewEvaluator(nil, DefaultConfig())
	cond := model.Condition{Type: model.ConditionDescription, Operator: model.OpContains, Value: "Coffee"}

	tests := []struct {
		description string
		want        bool
	}{
		{description: "BLUE BOTTLE COFFEE #12", want: true},
		{description: "coffee", want: true},
		{description: "Tea house", want: false},
		{description: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got := e.EvaluateCondition(context.Background(), cond, nil, txnOn(t, "1", tt.description, "2024-01-01"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateAmount(t *testing.T) {
	e := NewEvaluator(nil, DefaultConfig())

	tests := []struct {
		name     string
		operator model.Operator
		value    string
		amount   string
		want     bool
	}{
		{name: "greater than just above", operator: model.OpGreaterThan, value: "100", amount: "100.01", want: true},
		{name: "greater than equal value", operator: model.OpGreaterThan, value: "100", amount: "100.00", want: false},
		{name: "greater or equal", operator: model.OpGreaterThanOrEqual, value: "100", amount: "100.00", want: true},
		{name: "less than", operator: model.OpLessThan, value: "0", amount: "-0.01", want: true},
		{name: "less or equal", operator: model.OpLessThanOrEqual, value: "-5", amount: "-5.000", want: true},
		{name: "equals across scales", operator: model.OpEquals, value: "0.1", amount: "0.10", want: true},
		{name: "equals exact decimal", operator: model.OpEquals, value: "0.3", amount: "0.30000000000000004", want: false},
		{name: "unparsable operand", operator: model.OpGreaterThan, value: "lots", amount: "1000", want: false},
		{name: "wrong operator", operator: model.OpContains, value: "1", amount: "1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := model.Condition{Type: model.ConditionAmount, Operator: tt.operator, Value: tt.value}
			got := e.EvaluateCondition(context.Background(), cond, nil, txnOn(t, tt.amount, "x", "2024-01-01"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDate(t *testing.T) {
	e := NewEvaluator(nil, DefaultConfig())
	january := strPtr("2024-01-31")

	tests := []struct {
		name     string
		operator model.Operator
		value    string
		end      *string
		date     string
		want     bool
	}{
		{name: "between inside", operator: model.OpBetween, value: "2024-01-01", end: january, date: "2024-01-15", want: true},
		{name: "between start inclusive", operator: model.OpBetween, value: "2024-01-01", end: january, date: "2024-01-01", want: true},
		{name: "between end inclusive", operator: model.OpBetween, value: "2024-01-01", end: january, date: "2024-01-31", want: true},
		{name: "between outside", operator: model.OpBetween, value: "2024-01-01", end: january, date: "2024-02-01", want: false},
		{name: "not between outside", operator: model.OpNotBetween, value: "2024-01-01", end: january, date: "2024-02-01", want: true},
		{name: "not between inside", operator: model.OpNotBetween, value: "2024-01-01", end: january, date: "2024-01-15", want: false},
		{name: "not between on bound", operator: model.OpNotBetween, value: "2024-01-01", end: january, date: "2024-01-31", want: false},
		{name: "between missing end", operator: model.OpBetween, value: "2024-01-01", date: "2024-01-15", want: false},
		{name: "not between missing end", operator: model.OpNotBetween, value: "2024-01-01", date: "2023-01-15", want: false},
		{name: "between bad end", operator: model.OpBetween, value: "2024-01-01", end: strPtr("soon"), date: "2024-01-15", want: false},
		{name: "before strict", operator: model.OpBefore, value: "2024-01-15", date: "2024-01-15", want: false},
		{name: "before", operator: model.OpBefore, value: "2024-01-15", date: "2024-01-14", want: true},
		{name: "after strict", operator: model.OpAfter, value: "2024-01-15", date: "2024-01-15", want: false},
		{name: "after", operator: model.OpAfter, value: "2024-01-15", date: "2024-01-16", want: true},
		{name: "rfc3339 operand truncated", operator: model.OpAfter, value: "2024-01-15T18:00:00Z", date: "2024-01-16", want: true},
		{name: "missing transaction date", operator: model.OpBefore, value: "2030-01-01", date: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := model.Condition{Type: model.ConditionDate, Operator: tt.operator, Value: tt.value, OptionalValue: tt.end}
			got := e.EvaluateCondition(context.Background(), cond, nil, txnOn(t, "1", "x", tt.date))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateNotBetweenIsComplementOfBetween(t *testing.T) {
	e := NewEvaluator(nil, DefaultConfig())
	between := model.Condition{Type: model.ConditionDate, Operator: model.OpBetween, Value: "2024-03-10", OptionalValue: strPtr("2024-03-20")}
	notBetween := between
	notBetween.Operator = model.OpNotBetween

	for day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); day.Month() == time.March; day = day.AddDate(0, 0, 1) {
		txn := txnOn(t, "1", "x", day.Format(model.DateLayout))
		assert.NotEqual(t,
			e.EvaluateCondition(context.Background(), between, nil, txn),
			e.EvaluateCondition(context.Background(), notBetween, nil, txn),
			day.Format(model.DateLayout))
	}
}

func TestEvaluateAI(t *testing.T) {
	category := &model.Category{ID: "cat-1", Name: "Subscriptions", Description: "recurring services"}
	cond := model.Condition{Type: model.ConditionAI, AIPrompt: "streaming services"}
	txn := txnOn(t, "15.99", "NETFLIX.COM", "2024-05-02")

	wantReq := service.ClassifyRequest{
		Category:               service.ClassifyCategory{Name: "Subscriptions", Description: "recurring services"},
		TransactionDate:        "2024-05-02",
		TransactionDescription: "NETFLIX.COM",
		TransactionAmount:      "15.99",
		AIPrompt:               "streaming services",
	}

	tests := []struct {
		decision service.Decision
		want     bool
	}{
		{decision: service.DecisionApply, want: true},
		{decision: service.DecisionDoNotApply, want: false},
		{decision: service.DecisionUnavailable, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			classifier := &mockClassifier{}
			classifier.On("Classify", mock.Anything, wantReq).Return(tt.decision).Once()

			e := NewEvaluator(classifier, DefaultConfig())
			assert.Equal(t, tt.want, e.EvaluateCondition(context.Background(), cond, category, txn))
			classifier.AssertExpectations(t)
		})
	}

	t.Run("no category never calls the classifier", func(t *testing.T) {
		classifier := &mockClassifier{}
		e := NewEvaluator(classifier, DefaultConfig())
		assert.False(t, e.EvaluateCondition(context.Background(), cond, nil, txn))
		classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	})

	t.Run("nil classifier", func(t *testing.T) {
		e := NewEvaluator(nil, DefaultConfig())
		assert.False(t, e.EvaluateCondition(context.Background(), cond, category, txn))
	})

	t.Run("call carries a deadline", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("Classify", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), mock.Anything).Return(service.DecisionApply).Once()

		e := NewEvaluator(classifier, Config{AITimeout: time.Second})
		assert.True(t, e.EvaluateCondition(context.Background(), cond, category, txn))
		classifier.AssertExpectations(t)
	})
}

func TestEvaluateUnknownType(t *testing.T) {
	e := NewEvaluator(nil, DefaultConfig())
	rule := model.CategorizationRule{Condition: model.Condition{Type: "merchant", Operator: model.OpContains, Value: "x"}}
	assert.False(t, e.Evaluate(context.Background(), rule, nil, txnOn(t, "1", "x", "2024-01-01")))
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name string
		rule model.CategorizationRule
		want string
	}{
		{
			name: "description",
			rule: model.CategorizationRule{IsActive: true, Condition: model.Condition{Type: model.ConditionDescription, Operator: model.OpContains, Value: "uber"}},
			want: `if description contains "uber" then Travel`,
		},
		{
			name: "amount",
			rule: model.CategorizationRule{IsActive: true, Condition: model.Condition{Type: model.ConditionAmount, Operator: model.OpGreaterThanOrEqual, Value: "100"}},
			want: "if amount >= 100 then Travel",
		},
		{
			name: "inactive date",
			rule: model.CategorizationRule{Condition: model.Condition{Type: model.ConditionDate, Operator: model.OpBetween, Value: "2024-01-01", OptionalValue: strPtr("2024-01-31")}},
			want: "if date between 2024-01-01 and 2024-01-31 then Travel (inactive)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Explain(tt.rule, "Travel"))
		})
	}
}
