package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/google/uuid"
)

const transactionColumns = `
	t.id, t.owner_id, t.amount, t.description, t.date, t.flags, t.source, t.created_at,
	EXISTS(
		SELECT 1 FROM transaction_reviews r
		WHERE r.transaction_id = t.id AND r.status = 'approved'
	) AS was_approved`

// ListTransactions returns the owner's transactions matching filter, ordered
// by date with undated transactions last.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, ownerID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.owner_id = ?`
	args := []any{ownerID}

	if filter.StartDate != nil {
		query += ` AND t.date >= ?`
		args = append(args, filter.StartDate.Format(model.DateLayout))
	}
	if filter.EndDate != nil {
		query += ` AND t.date <= ?`
		args = append(args, filter.EndDate.Format(model.DateLayout))
	}
	if filter.IsFlagged != nil {
		if *filter.IsFlagged {
			query += ` AND t.flags != '[]'`
		} else {
			query += ` AND t.flags = '[]'`
		}
	}
	if filter.CategoryID != "" {
		query += ` AND EXISTS(SELECT 1 FROM transaction_categories tc WHERE tc.transaction_id = t.id AND tc.category_id = ?)`
		args = append(args, filter.CategoryID)
	}

	query += ` ORDER BY t.date IS NULL, t.date, t.created_at, t.rowid`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	if err := loadCategoryLinks(ctx, s.db, ownerID, "", transactions); err != nil {
		return nil, err
	}

	slog.Debug("retrieved transactions", "owner", ownerID, "count", len(transactions))
	return transactions, nil
}

// GetTransaction returns a single transaction with its category links.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, ownerID, id string) (*model.Transaction, error) {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return getTransactionTx(ctx, s.db, ownerID, id)
}

func getTransactionTx(ctx context.Context, q querier, ownerID, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ? AND t.owner_id = ?`, id, ownerID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("transaction", id)
	}
	if err != nil {
		return nil, err
	}

	single := []model.Transaction{*txn}
	if err := loadCategoryLinks(ctx, q, ownerID, id, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn       model.Transaction
		date      sql.NullString
		flagsJSON string
		source    string
	)
	err := row.Scan(
		&txn.ID, &txn.OwnerID, &txn.Amount, &txn.Description,
		&date, &flagsJSON, &source, &txn.CreatedAt, &txn.WasApproved,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Source = model.Source(source)
	if date.Valid && date.String != "" {
		parsed, parseErr := time.Parse(model.DateLayout, date.String)
		if parseErr != nil {
			return nil, fmt.Errorf("transaction %s has invalid date %q: %w", txn.ID, date.String, parseErr)
		}
		txn.Date = parsed
	}

	flags, err := decodeFlags(flagsJSON)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
	}
	txn.Flags = flags

	return &txn, nil
}

// loadCategoryLinks fills in the category links of txns. A non-empty
// transactionID narrows the query to that transaction.
func loadCategoryLinks(ctx context.Context, q querier, ownerID, transactionID string, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	query := `
		SELECT tc.transaction_id, tc.category_id, tc.added_by, tc.rule_id, tc.created_at
		FROM transaction_categories tc
		JOIN transactions t ON t.id = tc.transaction_id
		WHERE t.owner_id = ?`
	args := []any{ownerID}
	if transactionID != "" {
		query += ` AND tc.transaction_id = ?`
		args = append(args, transactionID)
	}
	query += ` ORDER BY tc.created_at, tc.rowid`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query transaction categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[string]int, len(txns))
	for i := range txns {
		index[txns[i].ID] = i
		txns[i].Categories = []model.TransactionCategory{}
	}

	for rows.Next() {
		var (
			link    model.TransactionCategory
			addedBy string
			ruleID  sql.NullString
		)
		if err := rows.Scan(&link.TransactionID, &link.CategoryID, &addedBy, &ruleID, &link.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan transaction category: %w", err)
		}
		i, ok := index[link.TransactionID]
		if !ok {
			continue
		}
		link.AddedBy = model.Provenance(addedBy)
		if ruleID.Valid {
			id := ruleID.String
			link.RuleID = &id
		}
		txns[i].Categories = append(txns[i].Categories, link)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transaction categories: %w", err)
	}
	return nil
}

// CreateTransaction stores a new transaction and links its categories as
// user-added.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, ownerID string, txn service.NewTransaction) (*model.Transaction, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := validateNewTransaction(&txn); err != nil {
		return nil, err
	}

	var created *model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted, err := insertTransactionTx(ctx, tx, ownerID, txn, time.Now().UTC())
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created transaction", "owner", ownerID, "id", created.ID, "amount", created.Amount.String())
	return created, nil
}

// ImportTransactions stores a batch of transactions atomically: either every
// row is stored or none is.
func (s *SQLiteStorage) ImportTransactions(ctx context.Context, ownerID string, txns []service.NewTransaction) ([]model.Transaction, error) {
	if err := validateScope(ctx, ownerID); err != nil {
		return nil, err
	}
	for i := range txns {
		if err := validateNewTransaction(&txns[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	imported := make([]model.Transaction, 0, len(txns))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for i, txn := range txns {
			// Offset by index so creation order survives a shared timestamp.
			inserted, err := insertTransactionTx(ctx, tx, ownerID, txn, now.Add(time.Duration(i)))
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			imported = append(imported, *inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("imported transactions", "owner", ownerID, "count", len(imported))
	return imported, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, ownerID string, txn service.NewTransaction, createdAt time.Time) (*model.Transaction, error) {
	categoryIDs := uniqueIDs(txn.CategoryIDs)
	if err := ensureCategoriesOwned(ctx, tx, ownerID, categoryIDs); err != nil {
		return nil, err
	}

	created := &model.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Amount:      txn.Amount,
		Description: txn.Description,
		Date:        model.TruncateDay(txn.Date),
		Source:      txn.Source,
		Flags:       model.FlagSet{},
		CreatedAt:   createdAt,
		Categories:  make([]model.TransactionCategory, 0, len(categoryIDs)),
	}

	var date any
	if created.HasDate() {
		date = created.Date.Format(model.DateLayout)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, amount, description, date, flags, source, created_at)
		VALUES (?, ?, ?, ?, ?, '[]', ?, ?)`,
		created.ID, ownerID, created.Amount.String(), created.Description, date, string(created.Source), createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, categoryID := range categoryIDs {
		if _, err := linkCategoryTx(ctx, tx, created.ID, categoryID, model.AddedByUser, nil, createdAt); err != nil {
			return nil, err
		}
		created.Categories = append(created.Categories, model.TransactionCategory{
			TransactionID: created.ID,
			CategoryID:    categoryID,
			AddedBy:       model.AddedByUser,
			CreatedAt:     createdAt,
		})
	}

	return created, nil
}

// DeleteTransaction removes a transaction with its links and reviews.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if err := validateScope(ctx, ownerID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectAffected(result, "transaction", id)
}

// SetTransactionCategories replaces the category links of a transaction.
// Links that survive keep their original provenance.
func (s *SQLiteStorage) SetTransactionCategories(ctx context.Context, ownerID, transactionID string, categoryIDs []string) error {
	if err := validateScope(ctx, ownerID, transactionID); err != nil {
		return err
	}
	categoryIDs = uniqueIDs(categoryIDs)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureTransactionOwned(ctx, tx, ownerID, transactionID); err != nil {
			return err
		}
		if err := ensureCategoriesOwned(ctx, tx, ownerID, categoryIDs); err != nil {
			return err
		}

		query := `DELETE FROM transaction_categories WHERE transaction_id = ?`
		args := []any{transactionID}
		if len(categoryIDs) > 0 {
			query += ` AND category_id NOT IN (?` + strings.Repeat(", ?", len(categoryIDs)-1) + `)`
			for _, id := range categoryIDs {
				args = append(args, id)
			}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear transaction categories: %w", err)
		}

		now := time.Now().UTC()
		for _, categoryID := range categoryIDs {
			if _, err := linkCategoryTx(ctx, tx, transactionID, categoryID, model.AddedByUser, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddTransactionCategory links a category to a transaction. It reports false
// when the link already existed, in which case nothing changes.
func (s *SQLiteStorage) AddTransactionCategory(ctx context.Context, ownerID, transactionID, categoryID string, addedBy model.Provenance, ruleID *string) (bool, error) {
	if err := validateScope(ctx, ownerID, transactionID, categoryID); err != nil {
		return false, err
	}

	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureTransactionOwned(ctx, tx, ownerID, transactionID); err != nil {
			return err
		}
		if err := ensureCategoriesOwned(ctx, tx, ownerID, []string{categoryID}); err != nil {
			return err
		}
		var err error
		added, err = linkCategoryTx(ctx, tx, transactionID, categoryID, addedBy, ruleID, time.Now().UTC())
		return err
	})
	return added, err
}

func linkCategoryTx(ctx context.Context, q querier, transactionID, categoryID string, addedBy model.Provenance, ruleID *string, createdAt time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO transaction_categories (transaction_id, category_id, added_by, rule_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		transactionID, categoryID, string(addedBy), ruleID, createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to link category: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// AddTransactionFlags merges flags into the transaction's flag set and
// returns the flags that were newly added.
func (s *SQLiteStorage) AddTransactionFlags(ctx context.Context, ownerID, transactionID string, flags ...model.Flag) ([]model.Flag, error) {
	if err := validateScope(ctx, ownerID, transactionID); err != nil {
		return nil, err
	}
	if len(flags) == 0 {
		return nil, nil
	}

	var added []model.Flag
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var flagsJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT flags FROM transactions WHERE id = ? AND owner_id = ?`, transactionID, ownerID,
		).Scan(&flagsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return common.NotFound("transaction", transactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to read flags: %w", err)
		}

		current, err := decodeFlags(flagsJSON)
		if err != nil {
			return err
		}

		merged, newFlags := current.Merge(flags...)
		if len(newFlags) == 0 {
			return nil
		}

		encoded, err := encodeFlags(merged)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET flags = ?, updated_at = ? WHERE id = ?`,
			encoded, time.Now().UTC(), transactionID,
		); err != nil {
			return fmt.Errorf("failed to update flags: %w", err)
		}
		added = newFlags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func ensureTransactionOwned(ctx context.Context, q querier, ownerID, transactionID string) error {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ? AND owner_id = ?)`, transactionID, ownerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check transaction: %w", err)
	}
	if !exists {
		return common.NotFound("transaction", transactionID)
	}
	return nil
}

func decodeFlags(raw string) (model.FlagSet, error) {
	if raw == "" {
		return model.FlagSet{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("failed to decode flags: %w", err)
	}
	flags := make([]model.Flag, 0, len(names))
	for _, name := range names {
		flag, err := model.ParseFlag(name)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	set := model.NewFlagSet(flags...)
	if set == nil {
		set = model.FlagSet{}
	}
	return set, nil
}

func encodeFlags(flags model.FlagSet) (string, error) {
	encoded, err := json.Marshal(flags.Strings())
	if err != nil {
		return "", fmt.Errorf("failed to encode flags: %w", err)
	}
	return string(encoded), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
