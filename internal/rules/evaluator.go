package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// DefaultAITimeout bounds a single classification call.
const DefaultAITimeout = 10 * time.Second

// Config tunes the evaluator.
type Config struct {
	AITimeout time.Duration
}

// DefaultConfig returns the evaluator defaults.
func DefaultConfig() Config {
	return Config{AITimeout: DefaultAITimeout}
}

// Evaluator decides whether a rule's condition holds for a transaction.
// Malformed conditions never match; they do not panic or error.
type Evaluator struct {
	classifier Classifier
	config     Config
}

// NewEvaluator creates an evaluator. classifier may be nil, in which case ai
// conditions never match.
func NewEvaluator(classifier Classifier, config Config) *Evaluator {
	return &Evaluator{
		classifier: classifier,
		config:     config,
	}
}

// Evaluate reports whether rule matches txn. category is the rule's target
// and is only consulted for ai conditions.
func (e *Evaluator) Evaluate(ctx context.Context, rule model.CategorizationRule, category *model.Category, txn model.Transaction) bool {
	return e.EvaluateCondition(ctx, rule.Condition, category, txn)
}

// EvaluateCondition reports whether cond holds for txn.
func (e *Evaluator) EvaluateCondition(ctx context.Context, cond model.Condition, category *model.Category, txn model.Transaction) bool {
	switch cond.Type {
	case model.ConditionDescription:
		return matchDescription(cond, txn)
	case model.ConditionAmount:
		return matchAmount(cond, txn)
	case model.ConditionDate:
		return matchDate(cond, txn)
	case model.ConditionAI:
		return e.matchAI(ctx, cond, category, txn)
	default:
		return false
	}
}

func matchDescription(cond model.Condition, txn model.Transaction) bool {
	if cond.Operator != model.OpContains || !txn.HasDescription() || cond.Value == "" {
		return false
	}
	return strings.Contains(strings.ToLower(txn.Description), strings.ToLower(cond.Value))
}

func matchAmount(cond model.Condition, txn model.Transaction) bool {
	operand, err := decimal.NewFromString(strings.TrimSpace(cond.Value))
	if err != nil {
		return false
	}

	cmp := txn.Amount.Cmp(operand)
	switch cond.Operator {
	case model.OpGreaterThan:
		return cmp > 0
	case model.OpLessThan:
		return cmp < 0
	case model.OpEquals:
		return cmp == 0
	case model.OpGreaterThanOrEqual:
		return cmp >= 0
	case model.OpLessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func matchDate(cond model.Condition, txn model.Transaction) bool {
	if !txn.HasDate() {
		return false
	}
	start, err := model.ParseDate(cond.Value)
	if err != nil {
		return false
	}
	day := model.TruncateDay(txn.Date)

	switch cond.Operator {
	case model.OpBefore:
		return day.Before(start)
	case model.OpAfter:
		return day.After(start)
	case model.OpBetween, model.OpNotBetween:
		if cond.OptionalValue == nil {
			return false
		}
		end, err := model.ParseDate(*cond.OptionalValue)
		if err != nil {
			return false
		}
		inside := !day.Before(start) && !day.After(end)
		if cond.Operator == model.OpBetween {
			return inside
		}
		return day.Before(start) || day.After(end)
	default:
		return false
	}
}

func (e *Evaluator) matchAI(ctx context.Context, cond model.Condition, category *model.Category, txn model.Transaction) bool {
	if e.classifier == nil || category == nil || strings.TrimSpace(cond.AIPrompt) == "" {
		return false
	}

	if e.config.AITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.AITimeout)
		defer cancel()
	}

	decision := e.classifier.Classify(ctx, NewClassifyRequest(cond, category, txn))
	if decision == service.DecisionUnavailable {
		slog.Debug("ai classification unavailable",
			"transaction_id", txn.ID,
			"category_id", category.ID)
	}
	return decision == service.DecisionApply
}

// NewClassifyRequest builds the payload sent to the classification
// collaborator for an ai condition.
func NewClassifyRequest(cond model.Condition, category *model.Category, txn model.Transaction) service.ClassifyRequest {
	req := service.ClassifyRequest{
		TransactionDescription: txn.Description,
		TransactionAmount:      txn.Amount.String(),
		AIPrompt:               cond.AIPrompt,
	}
	if txn.HasDate() {
		req.TransactionDate = txn.Date.Format(model.DateLayout)
	}
	if category != nil {
		req.Category = service.ClassifyCategory{
			Name:        category.Name,
			Description: category.Description,
		}
	}
	return req
}

// Explain renders a rule as a one-line sentence for listings.
func Explain(rule model.CategorizationRule, categoryName string) string {
	if categoryName == "" {
		categoryName = rule.CategoryID
	}

	var cond string
	c := rule.Condition
	switch c.Type {
	case model.ConditionDescription:
		cond = fmt.Sprintf("description contains %q", c.Value)
	case model.ConditionAmount:
		symbol, ok := amountSymbols[c.Operator]
		if !ok {
			symbol = string(c.Operator)
		}
		cond = fmt.Sprintf("amount %s %s", symbol, c.Value)
	case model.ConditionAI:
		cond = fmt.Sprintf("AI judges %q", c.AIPrompt)
	default:
		cond = c.String()
	}

	explained := fmt.Sprintf("if %s then %s", cond, categoryName)
	if !rule.IsActive {
		explained += " (inactive)"
	}
	return explained
}

var amountSymbols = map[model.Operator]string{
	model.OpGreaterThan:        ">",
	model.OpLessThan:           "<",
	model.OpEquals:             "=",
	model.OpGreaterThanOrEqual: ">=",
	model.OpLessThanOrEqual:    "<=",
}
