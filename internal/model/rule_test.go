package model

import (
	"testing"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		wantField string
	}{
		{
			name:      "description contains",
			condition: Condition{Type: ConditionDescription, Operator: OpContains, Value: "coffee"},
		},
		{
			name:      "amount comparison",
			condition: Condition{Type: ConditionAmount, Operator: OpGreaterThanOrEqual, Value: "-12.50"},
		},
		{
			name:      "date between",
			condition: Condition{Type: ConditionDate, Operator: OpBetween, Value: "2024-01-01", OptionalValue: strPtr("2024-01-31")},
		},
		{
			name:      "ai with prompt",
			condition: Condition{Type: ConditionAI, AIPrompt: "subscriptions"},
		},
		{
			name:      "unknown type",
			condition: Condition{Type: "merchant", Operator: OpContains, Value: "x"},
			wantField: "conditionType",
		},
		{
			name:      "ai without prompt",
			condition: Condition{Type: ConditionAI},
			wantField: "aiPrompt",
		},
		{
			name:      "operator from another type",
			condition: Condition{Type: ConditionAmount, Operator: OpBefore, Value: "5"},
			wantField: "conditionSubtype",
		},
		{
			name:      "empty value",
			condition: Condition{Type: ConditionDescription, Operator: OpContains, Value: " "},
			wantField: "conditionValue",
		},
		{
			name:      "amount not a number",
			condition: Condition{Type: ConditionAmount, Operator: OpEquals, Value: "ten"},
			wantField: "conditionValue",
		},
		{
			name:      "date not a date",
			condition: Condition{Type: ConditionDate, Operator: OpBefore, Value: "yesterday"},
			wantField: "conditionValue",
		},
		{
			name:      "between without end",
			condition: Condition{Type: ConditionDate, Operator: OpNotBetween, Value: "2024-01-01"},
			wantField: "optionalConditionValue",
		},
		{
			name:      "between with inverted range",
			condition: Condition{Type: ConditionDate, Operator: OpBetween, Value: "2024-02-01", OptionalValue: strPtr("2024-01-01")},
			wantField: "optionalConditionValue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.condition.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, common.ErrValidation)
			var verr *common.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.wantField, verr.Field)
			}
		})
	}
}

func TestConditionString(t *testing.T) {
	assert.Equal(t, "description contains cafe",
		Condition{Type: ConditionDescription, Operator: OpContains, Value: "cafe"}.String())
	assert.Equal(t, "date between 2024-01-01 and 2024-01-31",
		Condition{Type: ConditionDate, Operator: OpBetween, Value: "2024-01-01", OptionalValue: strPtr("2024-01-31")}.String())
	assert.Equal(t, "ai: gym memberships",
		Condition{Type: ConditionAI, AIPrompt: "gym memberships"}.String())
}

func TestCategorizationRuleValidate(t *testing.T) {
	rule := &CategorizationRule{Condition: Condition{Type: ConditionDescription, Operator: OpContains, Value: "x"}}
	assert.ErrorIs(t, rule.Validate(), common.ErrValidation)

	rule.CategoryID = "cat"
	assert.NoError(t, rule.Validate())
}

func TestAnomalyRuleValidate(t *testing.T) {
	rule := &AnomalyRule{Name: "big", Severity: SeverityMedium, Condition: []byte(`{"conditionType":"amount"}`)}
	assert.NoError(t, rule.Validate())

	rule.Condition = []byte(`{not json`)
	assert.ErrorIs(t, rule.Validate(), common.ErrValidation)
}
