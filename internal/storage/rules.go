package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

const ruleColumns = `
	id, owner_id, category_id, condition_type, condition_subtype, condition_value,
	optional_condition_value, ai_prompt, priority, is_active, created_at`

// CreateCategorizationRule stores a new rule. The target category must
// belong to the rule's owner.
func (s *SQLiteStorage) CreateCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateScope(ctx, rule.OwnerID); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureCategoriesOwned(ctx, tx, rule.OwnerID, []string{rule.CategoryID}); err != nil {
			return err
		}

		rule.ID = uuid.NewString()
		rule.CreatedAt = time.Now().UTC()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO categorization_rules (`+ruleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.OwnerID, rule.CategoryID,
			string(rule.Condition.Type), string(rule.Condition.Operator), rule.Condition.Value,
			rule.Condition.OptionalValue, rule.Condition.AIPrompt,
			rule.Priority, rule.IsActive, rule.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create categorization rule: %w", err)
		}
		return nil
	})
}

// GetCategorizationRule returns a rule by id.
func (s *SQLiteStorage) GetCategorizationRule(ctx context.Context, ownerID, id string) (*model.CategorizationRule, error) {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM categorization_rules WHERE id = ? AND owner_id = ?`, id, ownerID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("categorization rule", id)
	}
	return rule, err
}

// ListCategorizationRules returns all of the owner's rules in evaluation order.
func (s *SQLiteStorage) ListCategorizationRules(ctx context.Context, ownerID string) ([]model.CategorizationRule, error) {
	return s.listRules(ctx, ownerID, false)
}

// ListActiveCategorizationRules returns the owner's active rules in evaluation order.
func (s *SQLiteStorage) ListActiveCategorizationRules(ctx context.Context, ownerID string) ([]model.CategorizationRule, error) {
	return s.listRules(ctx, ownerID, true)
}

func (s *SQLiteStorage) listRules(ctx context.Context, ownerID string, activeOnly bool) ([]model.CategorizationRule, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM categorization_rules WHERE owner_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY priority, created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categorization rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategorizationRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categorization rules: %w", err)
	}
	return rules, nil
}

// UpdateCategorizationRule replaces the mutable fields of a rule.
func (s *SQLiteStorage) UpdateCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateScope(ctx, rule.OwnerID, rule.ID); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureCategoriesOwned(ctx, tx, rule.OwnerID, []string{rule.CategoryID}); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE categorization_rules SET
				category_id = ?, condition_type = ?, condition_subtype = ?, condition_value = ?,
				optional_condition_value = ?, ai_prompt = ?, priority = ?, is_active = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?`,
			rule.CategoryID, string(rule.Condition.Type), string(rule.Condition.Operator), rule.Condition.Value,
			rule.Condition.OptionalValue, rule.Condition.AIPrompt, rule.Priority, rule.IsActive, time.Now().UTC(),
			rule.ID, rule.OwnerID,
		)
		if err != nil {
			return fmt.Errorf("failed to update categorization rule: %w", err)
		}
		return expectAffected(result, "categorization rule", rule.ID)
	})
}

// DeleteCategorizationRule removes a rule. Links it created keep their
// category but lose the rule reference.
func (s *SQLiteStorage) DeleteCategorizationRule(ctx context.Context, ownerID, id string) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM categorization_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete categorization rule: %w", err)
	}
	return expectAffected(result, "categorization rule", id)
}

func scanRule(row rowScanner) (*model.CategorizationRule, error) {
	var (
		rule          model.CategorizationRule
		conditionType string
		operator      string
		optional      sql.NullString
	)
	err := row.Scan(
		&rule.ID, &rule.OwnerID, &rule.CategoryID,
		&conditionType, &operator, &rule.Condition.Value,
		&optional, &rule.Condition.AIPrompt,
		&rule.Priority, &rule.IsActive, &rule.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan categorization rule: %w", err)
	}

	rule.Condition.Type = model.ConditionType(conditionType)
	rule.Condition.Operator = model.Operator(operator)
	if optional.Valid {
		value := optional.String
		rule.Condition.OptionalValue = &value
	}
	return &rule, nil
}
