package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

// CreateAnomalyRule stores a user-defined anomaly rule.
func (s *SQLiteStorage) CreateAnomalyRule(ctx context.Context, rule *model.AnomalyRule) error {
	if rule == nil {
		return fmt.Errorf("%w: anomaly rule", ErrNilParameter)
	}
	if err := validateScope(ctx, rule.OwnerID); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anomaly_rules (id, owner_id, name, description, condition, severity, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OwnerID, rule.Name, rule.Description, string(rule.Condition),
		string(rule.Severity), rule.IsActive, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create anomaly rule: %w", err)
	}
	return nil
}

// ListAnomalyRules returns the owner's anomaly rules, oldest first.
func (s *SQLiteStorage) ListAnomalyRules(ctx context.Context, ownerID string) ([]model.AnomalyRule, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, description, condition, severity, is_active, created_at
		FROM anomaly_rules
		WHERE owner_id = ?
		ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.AnomalyRule
	for rows.Next() {
		var (
			rule      model.AnomalyRule
			condition string
			severity  string
		)
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.Name, &rule.Description,
			&condition, &severity, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly rule: %w", err)
		}
		rule.Condition = []byte(condition)
		rule.Severity = model.Severity(severity)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomaly rules: %w", err)
	}
	return rules, nil
}

// SetAnomalyRuleActive toggles an anomaly rule.
func (s *SQLiteStorage) SetAnomalyRuleActive(ctx context.Context, ownerID, id string, active bool) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE anomaly_rules SET is_active = ? WHERE id = ? AND owner_id = ?`, active, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update anomaly rule: %w", err)
	}
	return expectAffected(result, "anomaly rule", id)
}

// DeleteAnomalyRule removes an anomaly rule.
func (s *SQLiteStorage) DeleteAnomalyRule(ctx context.Context, ownerID, id string) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM anomaly_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete anomaly rule: %w", err)
	}
	return expectAffected(result, "anomaly rule", id)
}
