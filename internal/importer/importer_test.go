package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCSV(t *testing.T) {
	db := testutil.SetupTestDB(t, "Coffee")
	coffee := db.CategoryID("Coffee")

	input := "amount,description,date,categories\n" +
		"4.50,Blue Bottle,2024-01-02," + coffee + "\n" +
		"oops,Broken,2024-01-03\n" +
		"9,Unknown category,2024-01-04,missing-id\n" +
		"12,Bakery,\n"

	result, err := New(db.Storage).ImportCSV(context.Background(), db.Owner, strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Imported, 2)
	require.Len(t, result.RowErrors, 2)
	assert.Equal(t, 3, result.RowErrors[0].Line)
	assert.Equal(t, 4, result.RowErrors[1].Line)

	stored := db.All()
	require.Len(t, stored, 2)
	for _, txn := range stored {
		assert.Equal(t, model.SourceCSV, txn.Source)
	}

	blueBottle := db.Reload(result.Imported[0].ID)
	assert.Equal(t, []string{coffee}, blueBottle.CategoryIDs())
	require.Len(t, blueBottle.Categories, 1)
	assert.Equal(t, model.AddedByUser, blueBottle.Categories[0].AddedBy)
	assert.False(t, db.Reload(result.Imported[1].ID).HasDate())
}

func TestImportCSVWithNoValidRows(t *testing.T) {
	db := testutil.SetupTestDB(t)

	result, err := New(db.Storage).ImportCSV(context.Background(), db.Owner, strings.NewReader("x,y,z\nbad,row,here\n"))
	require.NoError(t, err)
	assert.Empty(t, result.Imported)
	assert.Len(t, result.RowErrors, 1)
	assert.Empty(t, db.All())
}

func TestImportOFX(t *testing.T) {
	db := testutil.SetupTestDB(t)

	result, err := New(db.Storage).ImportOFX(context.Background(), db.Owner, strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, result.Imported, 2)
	for _, txn := range db.All() {
		assert.Equal(t, model.SourceOFX, txn.Source)
		assert.Equal(t, db.Owner, txn.OwnerID)
	}
}
