// Package model defines the core domain models used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// ConditionType selects which transaction attribute a rule inspects.
type ConditionType string

// Condition types.
const (
	ConditionDescription ConditionType = "description"
	ConditionAmount      ConditionType = "amount"
	ConditionDate        ConditionType = "date"
	ConditionAI          ConditionType = "ai"
)

// Operator is the comparison applied for a condition type.
type Operator string

// Operators, grouped by the condition type that accepts them.
const (
	OpContains Operator = "contains"

	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpEquals             Operator = "equals"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"

	OpBefore     Operator = "before"
	OpAfter      Operator = "after"
	OpBetween    Operator = "between"
	OpNotBetween Operator = "not_between"
)

var operatorsByType = map[ConditionType][]Operator{
	ConditionDescription: {OpContains},
	ConditionAmount:      {OpGreaterThan, OpLessThan, OpEquals, OpGreaterThanOrEqual, OpLessThanOrEqual},
	ConditionDate:        {OpBefore, OpAfter, OpBetween, OpNotBetween},
	ConditionAI:          {},
}

// OperatorsFor returns the operators accepted by a condition type.
func OperatorsFor(t ConditionType) []Operator {
	return operatorsByType[t]
}

// Ranged reports whether the operator needs a second bound.
func (o Operator) Ranged() bool {
	return o == OpBetween || o == OpNotBetween
}

// Condition is the typed predicate attached to a categorization rule.
type Condition struct {
	OptionalValue *string       `json:"optionalConditionValue,omitempty"`
	Type          ConditionType `json:"conditionType"`
	Operator      Operator      `json:"conditionSubtype,omitempty"`
	Value         string        `json:"conditionValue,omitempty"`
	AIPrompt      string        `json:"aiPrompt,omitempty"`
}

// Validate rejects conditions the evaluator could never match.
func (c Condition) Validate() error {
	ops, ok := operatorsByType[c.Type]
	if !ok {
		return common.NewValidationError("conditionType", fmt.Sprintf("unknown condition type %q", c.Type))
	}

	if c.Type == ConditionAI {
		if strings.TrimSpace(c.AIPrompt) == "" {
			return common.NewValidationError("aiPrompt", "required for ai conditions")
		}
		return nil
	}

	known := false
	for _, op := range ops {
		if op == c.Operator {
			known = true
			break
		}
	}
	if !known {
		return common.NewValidationError("conditionSubtype",
			fmt.Sprintf("operator %q is not valid for %s conditions", c.Operator, c.Type))
	}

	if strings.TrimSpace(c.Value) == "" {
		return common.NewValidationError("conditionValue", "required")
	}

	switch c.Type {
	case ConditionAmount:
		if _, err := decimal.NewFromString(strings.TrimSpace(c.Value)); err != nil {
			return common.NewValidationError("conditionValue", fmt.Sprintf("not a decimal amount: %q", c.Value))
		}
	case ConditionDate:
		start, err := ParseDate(c.Value)
		if err != nil {
			return common.NewValidationError("conditionValue", fmt.Sprintf("not a date: %q", c.Value))
		}
		if c.Operator.Ranged() {
			if c.OptionalValue == nil || strings.TrimSpace(*c.OptionalValue) == "" {
				return common.NewValidationError("optionalConditionValue", fmt.Sprintf("required for %s", c.Operator))
			}
			end, err := ParseDate(*c.OptionalValue)
			if err != nil {
				return common.NewValidationError("optionalConditionValue", fmt.Sprintf("not a date: %q", *c.OptionalValue))
			}
			if end.Before(start) {
				return common.NewValidationError("optionalConditionValue", "must not be before conditionValue")
			}
		}
	}

	return nil
}

// String renders the condition for display.
func (c Condition) String() string {
	switch c.Type {
	case ConditionAI:
		return fmt.Sprintf("ai: %s", c.AIPrompt)
	case ConditionDate:
		if c.Operator.Ranged() && c.OptionalValue != nil {
			return fmt.Sprintf("date %s %s and %s", c.Operator, c.Value, *c.OptionalValue)
		}
	}
	return fmt.Sprintf("%s %s %s", c.Type, c.Operator, c.Value)
}

// CategorizationRule assigns a category to transactions matching its condition.
type CategorizationRule struct {
	CreatedAt  time.Time `json:"createdAt"`
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	CategoryID string    `json:"categoryId"`
	Condition  Condition `json:"condition"`
	Priority   int       `json:"priority"`
	IsActive   bool      `json:"isActive"`
}

// Validate ensures the rule can be stored.
func (r *CategorizationRule) Validate() error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return common.NewValidationError("categoryId", "required")
	}
	return r.Condition.Validate()
}

// Severity grades an anomaly rule.
type Severity string

// Anomaly severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyRule is a stored, user-defined anomaly condition. Flagging is driven
// by fixed heuristics, so the condition payload is kept but not evaluated.
type AnomalyRule struct {
	CreatedAt   time.Time       `json:"createdAt"`
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Condition   json.RawMessage `json:"condition"`
	IsActive    bool            `json:"isActive"`
}

// Validate ensures the anomaly rule can be stored.
func (r *AnomalyRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return common.NewValidationError("name", "required")
	}
	switch r.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return common.NewValidationError("severity", fmt.Sprintf("unknown severity %q", r.Severity))
	}
	if len(r.Condition) == 0 || !json.Valid(r.Condition) {
		return common.NewValidationError("condition", "must be a JSON document")
	}
	return nil
}
