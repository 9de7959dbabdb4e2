// Package testutil provides test utilities for the ledger: an isolated,
// migrated in-memory database plus helpers that seed owner-scoped data.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// DefaultOwner is the owner used by TestDB helpers.
const DefaultOwner = "test-owner"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	Categories map[string]*model.Category
	Owner      string
}

// SetupTestDB creates a new in-memory test database seeded with the named
// categories for DefaultOwner. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, "Groceries", "Travel")
//	txn := db.Transaction("12.50", "Corner store", "2024-03-01", db.CategoryID("Groceries"))
func SetupTestDB(t *testing.T, categoryNames ...string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage:    store,
		Categories: make(map[string]*model.Category),
		Owner:      DefaultOwner,
		t:          t,
	}
	for _, name := range categoryNames {
		db.Category(name)
	}
	return db
}

// Category creates a category for the default owner and remembers it by name.
func (db *TestDB) Category(name string) *model.Category {
	db.t.Helper()
	cat, err := db.Storage.CreateCategory(context.Background(), db.Owner, name, "")
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	db.Categories[name] = cat
	return cat
}

// CategoryID returns the id of a seeded category or fails the test.
func (db *TestDB) CategoryID(name string) string {
	db.t.Helper()
	cat, ok := db.Categories[name]
	if !ok {
		db.t.Fatalf("category %q was not seeded", name)
	}
	return cat.ID
}

// Transaction creates a transaction for the default owner. An empty date
// leaves the transaction undated.
func (db *TestDB) Transaction(amount, description, date string, categoryIDs ...string) *model.Transaction {
	db.t.Helper()
	return db.TransactionFor(db.Owner, amount, description, date, categoryIDs...)
}

// TransactionFor creates a transaction for an arbitrary owner.
func (db *TestDB) TransactionFor(owner, amount, description, date string, categoryIDs ...string) *model.Transaction {
	db.t.Helper()

	value, err := decimal.NewFromString(amount)
	if err != nil {
		db.t.Fatalf("bad amount %q: %v", amount, err)
	}
	txn := service.NewTransaction{
		Amount:      value,
		Description: description,
		CategoryIDs: categoryIDs,
	}
	if date != "" {
		parsed, err := model.ParseDate(date)
		if err != nil {
			db.t.Fatalf("bad date %q: %v", date, err)
		}
		txn.Date = parsed
	}

	created, err := db.Storage.CreateTransaction(context.Background(), owner, txn)
	if err != nil {
		db.t.Fatalf("failed to seed transaction: %v", err)
	}
	return created
}

// Rule creates an active categorization rule for the default owner.
func (db *TestDB) Rule(categoryID string, priority int, cond model.Condition) *model.CategorizationRule {
	db.t.Helper()
	rule := &model.CategorizationRule{
		OwnerID:    db.Owner,
		CategoryID: categoryID,
		Condition:  cond,
		Priority:   priority,
		IsActive:   true,
	}
	if err := db.Storage.CreateCategorizationRule(context.Background(), rule); err != nil {
		db.t.Fatalf("failed to seed rule: %v", err)
	}
	return rule
}

// Reload fetches the current state of a transaction.
func (db *TestDB) Reload(id string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransaction(context.Background(), db.Owner, id)
	if err != nil {
		db.t.Fatalf("failed to reload transaction %s: %v", id, err)
	}
	return txn
}

// All lists every transaction of the default owner.
func (db *TestDB) All() []model.Transaction {
	db.t.Helper()
	txns, err := db.Storage.ListTransactions(context.Background(), db.Owner, service.TransactionFilter{})
	if err != nil {
		db.t.Fatalf("failed to list transactions: %v", err)
	}
	return txns
}
