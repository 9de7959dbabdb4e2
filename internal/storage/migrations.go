package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_categories_owner ON categories(owner_id)`,
				`CREATE INDEX idx_categories_name ON categories(name)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					date TEXT,
					flags TEXT NOT NULL DEFAULT '[]',
					source TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME
				)`,
				`CREATE INDEX idx_transactions_owner ON transactions(owner_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS categorization_rules (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
					condition_type TEXT NOT NULL,
					condition_subtype TEXT NOT NULL DEFAULT '',
					condition_value TEXT NOT NULL DEFAULT '',
					optional_condition_value TEXT,
					ai_prompt TEXT NOT NULL DEFAULT '',
					priority INTEGER NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME
				)`,
				`CREATE INDEX idx_categorization_rules_owner ON categorization_rules(owner_id)`,
				`CREATE INDEX idx_categorization_rules_category ON categorization_rules(category_id)`,

				`CREATE TABLE IF NOT EXISTS transaction_categories (
					transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
					added_by TEXT NOT NULL,
					rule_id TEXT REFERENCES categorization_rules(id) ON DELETE SET NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (transaction_id, category_id)
				)`,
				`CREATE INDEX idx_transaction_categories_category ON transaction_categories(category_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add transaction reviews",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS transaction_reviews (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					owner_id TEXT NOT NULL,
					status TEXT NOT NULL,
					notes TEXT NOT NULL DEFAULT '',
					reviewed_at DATETIME,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transaction_reviews_transaction ON transaction_reviews(transaction_id)`,
				`CREATE INDEX idx_transaction_reviews_owner ON transaction_reviews(owner_id)`,
				`CREATE INDEX idx_transaction_reviews_status ON transaction_reviews(status)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add anomaly rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS anomaly_rules (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					condition TEXT NOT NULL,
					severity TEXT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_anomaly_rules_owner ON anomaly_rules(owner_id)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
