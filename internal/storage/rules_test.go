package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizationRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	food := mustCategory(t, store, ownerA, "Food")
	bills := mustCategory(t, store, ownerA, "Bills")
	end := "2024-12-31"

	late := &model.CategorizationRule{
		OwnerID:    ownerA,
		CategoryID: food.ID,
		Priority:   10,
		IsActive:   true,
		Condition:  model.Condition{Type: model.ConditionDescription, Operator: model.OpContains, Value: "market"},
	}
	early := &model.CategorizationRule{
		OwnerID:    ownerA,
		CategoryID: bills.ID,
		Priority:   1,
		IsActive:   true,
		Condition: model.Condition{
			Type:          model.ConditionDate,
			Operator:      model.OpBetween,
			Value:         "2024-01-01",
			OptionalValue: &end,
		},
	}
	inactive := &model.CategorizationRule{
		OwnerID:    ownerA,
		CategoryID: bills.ID,
		Priority:   5,
		IsActive:   false,
		Condition:  model.Condition{Type: model.ConditionAI, AIPrompt: "utility bills"},
	}
	for _, rule := range []*model.CategorizationRule{late, early, inactive} {
		require.NoError(t, store.CreateCategorizationRule(ctx, rule))
		assert.NotEmpty(t, rule.ID)
	}

	all, err := store.ListCategorizationRules(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{early.ID, inactive.ID, late.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := store.ListActiveCategorizationRules(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID)
	require.NotNil(t, active[0].Condition.OptionalValue)
	assert.Equal(t, end, *active[0].Condition.OptionalValue)

	t.Run("update", func(t *testing.T) {
		late.Priority = 0
		late.Condition.Value = "supermarket"
		require.NoError(t, store.UpdateCategorizationRule(ctx, late))

		got, err := store.GetCategorizationRule(ctx, ownerA, late.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Priority)
		assert.Equal(t, "supermarket", got.Condition.Value)
	})

	t.Run("invalid condition rejected", func(t *testing.T) {
		bad := &model.CategorizationRule{
			OwnerID:    ownerA,
			CategoryID: food.ID,
			Condition:  model.Condition{Type: model.ConditionAmount, Operator: model.OpContains, Value: "5"},
		}
		assert.ErrorIs(t, store.CreateCategorizationRule(ctx, bad), common.ErrValidation)
	})

	t.Run("category of another owner", func(t *testing.T) {
		travel := mustCategory(t, store, ownerB, "Travel")
		rule := &model.CategorizationRule{
			OwnerID:    ownerA,
			CategoryID: travel.ID,
			Condition:  model.Condition{Type: model.ConditionDescription, Operator: model.OpContains, Value: "x"},
		}
		assert.ErrorIs(t, store.CreateCategorizationRule(ctx, rule), common.ErrNotFound)
	})

	t.Run("other owner cannot read", func(t *testing.T) {
		_, err := store.GetCategorizationRule(ctx, ownerB, early.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, store.DeleteCategorizationRule(ctx, ownerB, early.ID), common.ErrNotFound)
	})
}

func TestAnomalyRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	rule := &model.AnomalyRule{
		OwnerID:   ownerA,
		Name:      "Large purchase",
		Severity:  model.SeverityHigh,
		Condition: json.RawMessage(`{"conditionType":"amount","conditionSubtype":"greater_than","conditionValue":"1000"}`),
		IsActive:  true,
	}
	require.NoError(t, store.CreateAnomalyRule(ctx, rule))

	require.NoError(t, store.SetAnomalyRuleActive(ctx, ownerA, rule.ID, false))

	rules, err := store.ListAnomalyRules(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].IsActive)
	assert.JSONEq(t, string(rule.Condition), string(rules[0].Condition))

	assert.ErrorIs(t, store.SetAnomalyRuleActive(ctx, ownerB, rule.ID, true), common.ErrNotFound)
	assert.ErrorIs(t, store.CreateAnomalyRule(ctx, &model.AnomalyRule{OwnerID: ownerA, Name: "x", Severity: "extreme", Condition: json.RawMessage(`{}`)}), common.ErrValidation)

	require.NoError(t, store.DeleteAnomalyRule(ctx, ownerA, rule.ID))
	rules, err = store.ListAnomalyRules(ctx, ownerA)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestReviews(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	txn := mustTransaction(t, store, ownerA, "5", "Lunch", "2024-01-01")

	first := &model.Review{OwnerID: ownerA, TransactionID: txn.ID, Status: model.ReviewPending, Notes: "check"}
	second := &model.Review{OwnerID: ownerA, TransactionID: txn.ID, Status: model.ReviewRejected}
	require.NoError(t, store.CreateReview(ctx, first))
	require.NoError(t, store.CreateReview(ctx, second))

	got, err := store.GetReview(ctx, ownerA, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "check", got.Notes)
	assert.Nil(t, got.ReviewedAt)

	pending := model.ReviewPending
	listed, err := store.ListReviews(ctx, ownerA, &pending)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)

	all, err := store.ListReviews(ctx, ownerA, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	t.Run("other owner", func(t *testing.T) {
		_, err := store.GetReview(ctx, ownerB, first.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)

		review := &model.Review{OwnerID: ownerB, TransactionID: txn.ID, Status: model.ReviewPending}
		assert.ErrorIs(t, store.CreateReview(ctx, review), common.ErrNotFound)
	})
}
