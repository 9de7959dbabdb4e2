package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

// ListCategories returns the owner's categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context, ownerID string) ([]model.Category, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, owner_id, name, description, created_at
		FROM categories
		WHERE owner_id = ?
		ORDER BY name, created_at`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.Description, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "owner", ownerID, "count", len(categories))
	return categories, nil
}

// GetCategory returns a single category.
func (s *SQLiteStorage) GetCategory(ctx context.Context, ownerID, id string) (*model.Category, error) {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return getCategoryTx(ctx, s.db, ownerID, id)
}

func getCategoryTx(ctx context.Context, q querier, ownerID, id string) (*model.Category, error) {
	query := `
		SELECT id, owner_id, name, description, created_at
		FROM categories
		WHERE id = ? AND owner_id = ?`

	var cat model.Category
	err := q.QueryRowContext(ctx, query, id, ownerID).Scan(
		&cat.ID, &cat.OwnerID, &cat.Name, &cat.Description, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

// CreateCategory creates a new category.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, ownerID, name, description string) (*model.Category, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("name", "required")
	}

	cat := &model.Category{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cat.ID, cat.OwnerID, cat.Name, cat.Description, cat.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	slog.Info("created category", "owner", ownerID, "id", cat.ID, "name", cat.Name)
	return cat, nil
}

// UpdateCategory renames a category and replaces its description.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, ownerID, id, name, description string) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return common.NewValidationError("name", "required")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, description = ?
		WHERE id = ? AND owner_id = ?`,
		name, strings.TrimSpace(description), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	return expectAffected(result, "category", id)
}

// DeleteCategory removes a category. Rules targeting it and its transaction
// links are removed with it.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return expectAffected(result, "category", id)
}

// expectAffected turns a zero-row write into a not-found error.
func expectAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.NotFound(kind, id)
	}
	return nil
}

// ensureCategoriesOwned verifies that every id names a category of the owner.
func ensureCategoriesOwned(ctx context.Context, q querier, ownerID string, ids []string) error {
	for _, id := range ids {
		var exists bool
		err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = ? AND owner_id = ?)`, id, ownerID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check category: %w", err)
		}
		if !exists {
			return common.NotFound("category", id)
		}
	}
	return nil
}
