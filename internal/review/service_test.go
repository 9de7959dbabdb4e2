package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, categories ...string) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, categories...)
	svc := NewService(db.Storage)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, db
}

func TestApproveClearsFlags(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	txn := db.Transaction("10", "", "2024-03-05")
	_, err := db.Storage.AddTransactionFlags(ctx, db.Owner, txn.ID, model.FlagIncomplete, model.FlagUncategorized)
	require.NoError(t, err)

	review, err := svc.Approve(ctx, db.Owner, txn.ID, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, review.Status)
	require.NotNil(t, review.ReviewedAt)

	got := db.Reload(txn.ID)
	assert.Empty(t, got.Flags)
	assert.True(t, got.WasApproved)
}

// failingApprovals fails every approval write.
type failingApprovals struct {
	service.Storage
}

func (failingApprovals) ApproveTransaction(context.Context, *model.Review) error {
	return errors.New("disk full")
}

func TestFailedApprovalLeavesNoApprovedReview(t *testing.T) {
	_, db := newTestService(t)
	svc := NewService(failingApprovals{Storage: db.Storage})
	ctx := context.Background()
	txn := db.Transaction("10", "", "2024-03-05")
	_, err := db.Storage.AddTransactionFlags(ctx, db.Owner, txn.ID, model.FlagIncomplete)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, db.Owner, txn.ID, "")
	require.Error(t, err)

	pending, err := svc.Create(ctx, db.Owner, txn.ID, model.ReviewPending, "")
	require.NoError(t, err)
	_, err = svc.Update(ctx, db.Owner, pending.ID, model.ReviewApproved, "")
	require.Error(t, err)

	approved := model.ReviewApproved
	reviews, err := svc.List(ctx, db.Owner, &approved)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	got := db.Reload(txn.ID)
	assert.Equal(t, model.FlagSet{model.FlagIncomplete}, got.Flags)
	assert.False(t, got.WasApproved)

	queue, err := svc.Queue(ctx, db.Owner)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, txn.ID, queue[0].ID)
}

func TestCreateDoesNotTouchFlags(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	txn := db.Transaction("10", "", "2024-03-05")
	_, err := db.Storage.AddTransactionFlags(ctx, db.Owner, txn.ID, model.FlagIncomplete)
	require.NoError(t, err)

	review, err := svc.Create(ctx, db.Owner, txn.ID, model.ReviewPending, "")
	require.NoError(t, err)
	assert.Nil(t, review.ReviewedAt)

	_, err = svc.Reject(ctx, db.Owner, txn.ID, "not mine")
	require.NoError(t, err)

	got := db.Reload(txn.ID)
	assert.Equal(t, model.FlagSet{model.FlagIncomplete}, got.Flags)
	assert.False(t, got.WasApproved)
}

func TestUpdateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    model.ReviewStatus
		to      model.ReviewStatus
		wantErr bool
	}{
		{name: "pending to approved", from: model.ReviewPending, to: model.ReviewApproved},
		{name: "pending to rejected", from: model.ReviewPending, to: model.ReviewRejected},
		{name: "pending to pending", from: model.ReviewPending, to: model.ReviewPending, wantErr: true},
		{name: "approved to rejected", from: model.ReviewApproved, to: model.ReviewRejected, wantErr: true},
		{name: "rejected to approved", from: model.ReviewRejected, to: model.ReviewApproved, wantErr: true},
		{name: "rejected to pending", from: model.ReviewRejected, to: model.ReviewPending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newTestService(t)
			ctx := context.Background()
			txn := db.Transaction("10", "Cafe", "2024-03-05")

			created, err := svc.Create(ctx, db.Owner, txn.ID, tt.from, "")
			require.NoError(t, err)

			updated, err := svc.Update(ctx, db.Owner, created.ID, tt.to, "decided")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				stored, getErr := db.Storage.GetReview(ctx, db.Owner, created.ID)
				require.NoError(t, getErr)
				assert.Equal(t, tt.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			assert.Equal(t, "decided", updated.Notes)
			require.NotNil(t, updated.ReviewedAt)
			assert.Equal(t, tt.to == model.ReviewApproved, db.Reload(txn.ID).WasApproved)
		})
	}
}

func TestUpdateUnknownReview(t *testing.T) {
	svc, db := newTestService(t)
	_, err := svc.Update(context.Background(), db.Owner, "missing", model.ReviewApproved, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReviewsAreOwnerScoped(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	txn := db.Transaction("10", "Cafe", "2024-03-05")

	_, err := svc.Approve(ctx, "intruder", txn.ID, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, db.Reload(txn.ID).WasApproved)
}

func TestQueue(t *testing.T) {
	svc, db := newTestService(t, "Food")
	ctx := context.Background()

	flagged := db.Transaction("10", "", "2024-03-05", db.CategoryID("Food"))
	_, err := db.Storage.AddTransactionFlags(ctx, db.Owner, flagged.ID, model.FlagIncomplete)
	require.NoError(t, err)
	uncategorized := db.Transaction("11", "Deli", "2024-03-05")
	db.Transaction("12", "Grocer", "2024-03-05", db.CategoryID("Food"))
	approved := db.Transaction("13", "Bakery", "2024-03-05")
	_, err = svc.Approve(ctx, db.Owner, approved.ID, "")
	require.NoError(t, err)

	queue, err := svc.Queue(ctx, db.Owner)
	require.NoError(t, err)

	ids := make([]string, len(queue))
	for i, txn := range queue {
		ids[i] = txn.ID
	}
	assert.ElementsMatch(t, []string{flagged.ID, uncategorized.ID}, ids)
}

func TestList(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	txn := db.Transaction("10", "Cafe", "2024-03-05")

	_, err := svc.Create(ctx, db.Owner, txn.ID, model.ReviewPending, "")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, db.Owner, txn.ID, "")
	require.NoError(t, err)

	all, err := svc.List(ctx, db.Owner, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rejected := model.ReviewRejected
	only, err := svc.List(ctx, db.Owner, &rejected)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, model.ReviewRejected, only[0].Status)
}
