package tui

import (
	"github.com/Veraticus/spice-ledger/internal/model"
)

// queueLoadedMsg carries the owner's review queue and category names.
type queueLoadedMsg struct {
	err        error
	categories map[string]string
	items      []model.Transaction
}

// reviewedMsg reports the outcome of approving or rejecting one transaction.
type reviewedMsg struct {
	err           error
	transactionID string
	status        model.ReviewStatus
}
