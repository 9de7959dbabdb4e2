// Package tui implements the interactive review queue.
package tui

import (
	"context"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Reviewer is the review workflow the queue drives.
type Reviewer interface {
	Queue(ctx context.Context, ownerID string) ([]model.Transaction, error)
	Approve(ctx context.Context, ownerID, transactionID, notes string) (*model.Review, error)
	Reject(ctx context.Context, ownerID, transactionID, notes string) (*model.Review, error)
}

// CategoryLister resolves category names for display.
type CategoryLister interface {
	ListCategories(ctx context.Context, ownerID string) ([]model.Category, error)
}

// Stats counts decisions made during one session.
type Stats struct {
	Approved int
	Rejected int
	Skipped  int
}

// Model holds the review queue state.
type Model struct {
	reviewer   Reviewer
	categories CategoryLister
	lastError  error
	names      map[string]string
	theme      Theme
	keymap     KeyMap
	ownerID    string
	status     string
	items      []model.Transaction
	stats      Stats
	cursor     int
	width      int
	height     int
	pending    bool
	showHelp   bool
	quitting   bool
	ready      bool
}

// NewModel creates a review queue for ownerID. categories may be nil, in
// which case category ids are shown instead of names.
func NewModel(reviewer Reviewer, categories CategoryLister, ownerID string) Model {
	return Model{
		reviewer:   reviewer,
		categories: categories,
		ownerID:    ownerID,
		theme:      DefaultTheme,
		keymap:     DefaultKeyMap(),
		names:      map[string]string{},
		width:      100,
		height:     30,
	}
}

// Init loads the queue.
func (m Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case queueLoadedMsg:
		m.ready = true
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.items = msg.items
		m.names = msg.categories
		m.cursor = 0
		m.lastError = nil
		if len(m.items) == 0 {
			m.status = "Nothing to review"
		}

	case reviewedMsg:
		m.pending = false
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.remove(msg.transactionID)
		if msg.status == model.ReviewApproved {
			m.stats.Approved++
			m.status = "Approved, flags cleared"
		} else {
			m.stats.Rejected++
			m.status = "Rejected"
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.showHelp || m.pending {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Home):
		m.cursor = 0
	case key.Matches(msg, m.keymap.End):
		if len(m.items) > 0 {
			m.cursor = len(m.items) - 1
		}
	case key.Matches(msg, m.keymap.Refresh):
		m.status = "Reloading..."
		return m, m.loadQueue()
	case key.Matches(msg, m.keymap.Approve):
		return m.decide(model.ReviewApproved)
	case key.Matches(msg, m.keymap.Reject):
		return m.decide(model.ReviewRejected)
	case key.Matches(msg, m.keymap.Skip):
		if txn, ok := m.Selected(); ok {
			m.remove(txn.ID)
			m.stats.Skipped++
			m.status = "Skipped"
		}
	}

	return m, nil
}

func (m Model) decide(status model.ReviewStatus) (tea.Model, tea.Cmd) {
	txn, ok := m.Selected()
	if !ok {
		return m, nil
	}
	m.pending = true
	return m, m.review(txn.ID, status)
}

// remove drops a transaction from the visible queue and keeps the cursor in range.
func (m *Model) remove(id string) {
	for i, txn := range m.items {
		if txn.ID == id {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.items) && m.cursor > 0 {
		m.cursor = len(m.items) - 1
	}
	if len(m.items) == 0 {
		m.cursor = 0
	}
}

// Selected returns the transaction under the cursor.
func (m Model) Selected() (model.Transaction, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.Transaction{}, false
	}
	return m.items[m.cursor], true
}

// Stats returns the decisions made so far.
func (m Model) Stats() Stats {
	return m.stats
}

// Remaining returns the number of transactions still in the visible queue.
func (m Model) Remaining() int {
	return len(m.items)
}
