package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	loadTimeout   = 30 * time.Second
	reviewTimeout = 10 * time.Second
)

// loadQueue loads the review queue and the owner's categories.
func (m Model) loadQueue() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		items, err := m.reviewer.Queue(ctx, m.ownerID)
		if err != nil {
			return queueLoadedMsg{err: fmt.Errorf("failed to load review queue: %w", err)}
		}

		names := make(map[string]string)
		if m.categories != nil {
			categories, err := m.categories.ListCategories(ctx, m.ownerID)
			if err != nil {
				return queueLoadedMsg{err: fmt.Errorf("failed to load categories: %w", err)}
			}
			for _, category := range categories {
				names[category.ID] = category.Name
			}
		}

		return queueLoadedMsg{items: items, categories: names}
	}
}

// review records a decision for one transaction.
func (m Model) review(transactionID string, status model.ReviewStatus) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reviewTimeout)
		defer cancel()

		var err error
		switch status {
		case model.ReviewApproved:
			_, err = m.reviewer.Approve(ctx, m.ownerID, transactionID, "")
		default:
			_, err = m.reviewer.Reject(ctx, m.ownerID, transactionID, "")
		}
		return reviewedMsg{transactionID: transactionID, status: status, err: err}
	}
}
