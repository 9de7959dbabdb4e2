package importer

import (
	"strings"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := `amount,description,date,categories
-4.50,Blue Bottle Coffee,2024-01-02,cat-1;cat-2
1800,Rent,01/31/2024
abc,Broken,2024-01-03
12.00,Bad date,2024-13-45
7,No date,
3.10,Trailing ids,2024-01-04, cat-3 ; ;
`
	rows, rowErrors, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	coffee := rows[0]
	assert.Equal(t, 2, coffee.Line)
	assert.True(t, decimal.RequireFromString("-4.5").Equal(coffee.Transaction.Amount))
	assert.Equal(t, "Blue Bottle Coffee", coffee.Transaction.Description)
	assert.Equal(t, "2024-01-02", coffee.Transaction.Date.Format(model.DateLayout))
	assert.Equal(t, []string{"cat-1", "cat-2"}, coffee.Transaction.CategoryIDs)
	assert.Equal(t, model.SourceCSV, coffee.Transaction.Source)

	assert.Equal(t, "2024-01-31", rows[1].Transaction.Date.Format(model.DateLayout))
	assert.True(t, rows[2].Transaction.Date.IsZero())
	assert.Equal(t, []string{"cat-3"}, rows[3].Transaction.CategoryIDs)

	require.Len(t, rowErrors, 2)
	assert.Equal(t, 4, rowErrors[0].Line)
	assert.Contains(t, rowErrors[0].Error(), "invalid amount")
	assert.Equal(t, 5, rowErrors[1].Line)
	assert.Contains(t, rowErrors[1].Error(), "invalid date")
}

func TestParseCSVWithoutHeader(t *testing.T) {
	rows, rowErrors, err := ParseCSV(strings.NewReader("10,Lunch,2024-02-01\n"))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Line)
}

func TestParseCSVRejectsShortRows(t *testing.T) {
	rows, rowErrors, err := ParseCSV(strings.NewReader("10\n20,Dinner\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dinner", rows[0].Transaction.Description)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 1, rowErrors[0].Line)
}

func TestParseCSVReportsQuoteErrors(t *testing.T) {
	rows, rowErrors, err := ParseCSV(strings.NewReader("10,\"bad\"quote,2024-01-01\n20,Fine,2024-01-02\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Fine", rows[0].Transaction.Description)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 1, rowErrors[0].Line)
}

func TestParseCSVMalformedFirstRowIsReported(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantRows   int
		wantErrors []int
	}{
		{name: "currency symbol", input: "$12.50,Coffee,2024-03-01\n4,Tea,2024-03-02\n", wantRows: 1, wantErrors: []int{1}},
		{name: "thousands separator", input: "\"1,200\",Rent,2024-03-01\n", wantRows: 0, wantErrors: []int{1}},
		{name: "header then malformed", input: "Amount,Memo,Posted\n$3,Snack,2024-03-01\n", wantRows: 0, wantErrors: []int{2}},
		{name: "header only", input: "amount,description,date,category ids\n", wantRows: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, rowErrors, err := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantRows)

			lines := make([]int, 0, len(rowErrors))
			for _, rowErr := range rowErrors {
				lines = append(lines, rowErr.Line)
				assert.Contains(t, rowErr.Error(), "invalid amount")
			}
			if len(tt.wantErrors) == 0 {
				assert.Empty(t, lines)
			} else {
				assert.Equal(t, tt.wantErrors, lines)
			}
		})
	}
}
