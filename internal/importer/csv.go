package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// CSVRow is a parsed row and the line it came from.
type CSVRow struct {
	Transaction service.NewTransaction
	Line        int
}

// ParseCSV reads rows of amount,description,date[,categoryIds]. A first row
// without any digits is treated as a header. Category ids are
// separated by semicolons. Invalid rows are returned as RowErrors; only a
// failing reader aborts the parse.
func ParseCSV(r io.Reader) ([]CSVRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		rows      []CSVRow
		rowErrors []RowError
		first     = true
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrors = append(rowErrors, RowError{Line: parseErr.StartLine, Err: parseErr.Err})
				first = false
				continue
			}
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		txn, err := parseRecord(record)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Err: err})
			continue
		}
		rows = append(rows, CSVRow{Line: line, Transaction: txn})
	}

	return rows, rowErrors, nil
}

// isHeader reports whether a first row names columns. Column names carry no
// digits, so a malformed data row such as "$12.50,Coffee,2024-03-01" is
// parsed and reported rather than skipped.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	for _, cell := range record {
		if strings.IndexFunc(cell, unicode.IsDigit) >= 0 {
			return false
		}
	}
	return true
}

func parseRecord(record []string) (service.NewTransaction, error) {
	if len(record) < 2 {
		return service.NewTransaction{}, fmt.Errorf("expected at least amount and description, got %d fields", len(record))
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(record[0]))
	if err != nil {
		return service.NewTransaction{}, fmt.Errorf("invalid amount %q", record[0])
	}

	txn := service.NewTransaction{
		Amount:      amount,
		Description: strings.TrimSpace(record[1]),
		Source:      model.SourceCSV,
	}

	if len(record) > 2 {
		if raw := strings.TrimSpace(record[2]); raw != "" {
			date, err := model.ParseDate(raw)
			if err != nil {
				return service.NewTransaction{}, fmt.Errorf("invalid date %q", raw)
			}
			txn.Date = date
		}
	}

	if len(record) > 3 {
		for _, id := range strings.Split(record[3], ";") {
			if id = strings.TrimSpace(id); id != "" {
				txn.CategoryIDs = append(txn.CategoryIDs, id)
			}
		}
	}

	return txn, nil
}
