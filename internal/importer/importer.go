// Package importer turns CSV and OFX statements into transactions.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// RowError describes a rejected input row. Line is 1-based.
type RowError struct {
	Err  error
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Result reports what an import stored and what it skipped.
type Result struct {
	Imported  []model.Transaction
	RowErrors []RowError
}

// Importer writes parsed statements to storage for one owner.
type Importer struct {
	storage service.Storage
}

// New creates an importer backed by storage.
func New(storage service.Storage) *Importer {
	return &Importer{storage: storage}
}

// ImportCSV parses r as CSV and stores every valid row in one batch. Rows
// naming a category the owner does not have are reported and skipped.
func (i *Importer) ImportCSV(ctx context.Context, ownerID string, r io.Reader) (*Result, error) {
	rows, rowErrors, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	valid, rejected, err := i.checkCategories(ctx, ownerID, rows)
	if err != nil {
		return nil, err
	}
	rowErrors = append(rowErrors, rejected...)

	txns := make([]service.NewTransaction, len(valid))
	for n, row := range valid {
		txns[n] = row.Transaction
	}

	imported, err := i.store(ctx, ownerID, txns)
	if err != nil {
		return nil, err
	}

	slog.Info("Imported CSV",
		"owner_id", ownerID,
		"imported", len(imported),
		"rejected", len(rowErrors))

	return &Result{Imported: imported, RowErrors: rowErrors}, nil
}

// ImportOFX parses r as an OFX or QFX statement and stores its transactions.
func (i *Importer) ImportOFX(ctx context.Context, ownerID string, r io.Reader) (*Result, error) {
	txns, err := NewOFXParser().Parse(r)
	if err != nil {
		return nil, err
	}

	imported, err := i.store(ctx, ownerID, txns)
	if err != nil {
		return nil, err
	}

	slog.Info("Imported OFX", "owner_id", ownerID, "imported", len(imported))
	return &Result{Imported: imported}, nil
}

func (i *Importer) store(ctx context.Context, ownerID string, txns []service.NewTransaction) ([]model.Transaction, error) {
	if len(txns) == 0 {
		return []model.Transaction{}, nil
	}
	imported, err := i.storage.ImportTransactions(ctx, ownerID, txns)
	if err != nil {
		return nil, fmt.Errorf("failed to store transactions: %w", err)
	}
	return imported, nil
}

func (i *Importer) checkCategories(ctx context.Context, ownerID string, rows []CSVRow) ([]CSVRow, []RowError, error) {
	categories, err := i.storage.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load categories: %w", err)
	}
	known := make(map[string]bool, len(categories))
	for _, category := range categories {
		known[category.ID] = true
	}

	valid := make([]CSVRow, 0, len(rows))
	var rejected []RowError
	for _, row := range rows {
		if missing := firstUnknown(row.Transaction.CategoryIDs, known); missing != "" {
			rejected = append(rejected, RowError{Line: row.Line, Err: fmt.Errorf("unknown category %q", missing)})
			continue
		}
		valid = append(valid, row)
	}
	return valid, rejected, nil
}

func firstUnknown(ids []string, known map[string]bool) string {
	for _, id := range ids {
		if !known[id] {
			return id
		}
	}
	return ""
}
