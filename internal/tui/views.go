package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.theme.Subtitle.Render("Loading review queue...")
	}
	if m.showHelp {
		return m.wrapWithBorder(m.renderHelp())
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		m.theme.Title.Render(fmt.Sprintf("Review queue (%d)", len(m.items))),
		m.renderList(),
		"",
		m.renderDetail(),
	)
	return m.wrapWithBorder(content)
}

// listHeight is the number of rows shown before the list scrolls.
func (m Model) listHeight() int {
	h := m.height - 14
	if h < 3 {
		return 3
	}
	return h
}

func (m Model) renderList() string {
	if len(m.items) == 0 {
		return m.theme.Subtitle.Render("All caught up.")
	}

	start := 0
	if visible := m.listHeight(); m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + m.listHeight()
	if end > len(m.items) {
		end = len(m.items)
	}

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		row := m.formatRow(m.items[i])
		if i == m.cursor {
			row = m.theme.Selected.Render("> " + row)
		} else {
			row = m.theme.Normal.Render("  " + row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m Model) formatRow(txn model.Transaction) string {
	date := "no date   "
	if txn.HasDate() {
		date = txn.Date.Format(model.DateLayout)
	}
	description := txn.Description
	if description == "" {
		description = "(no description)"
	}
	if limit := m.width / 2; limit > 10 && len(description) > limit {
		description = description[:limit-3] + "..."
	}
	return fmt.Sprintf("%s  %12s  %s", date, txn.Amount.StringFixed(2), description)
}

func (m Model) renderDetail() string {
	txn, ok := m.Selected()
	if !ok {
		return ""
	}

	flags := "none"
	if txn.IsFlagged() {
		flags = m.theme.Flag.Render(strings.Join(txn.Flags.Strings(), ", "))
	}

	categories := "none"
	if len(txn.Categories) > 0 {
		names := make([]string, 0, len(txn.Categories))
		for _, link := range txn.Categories {
			name, ok := m.names[link.CategoryID]
			if !ok {
				name = link.CategoryID
			}
			if link.AddedBy == model.AddedByRule {
				name += " (rule)"
			}
			names = append(names, name)
		}
		categories = m.theme.Category.Render(strings.Join(names, ", "))
	}

	lines := []string{
		m.theme.Bold.Render("Amount:     ") + txn.Amount.String(),
		m.theme.Bold.Render("Flags:      ") + flags,
		m.theme.Bold.Render("Categories: ") + categories,
		m.theme.Bold.Render("Source:     ") + string(txn.Source),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Review queue - Help"))
	b.WriteString("\n")
	for _, group := range m.keymap.FullHelp() {
		for _, binding := range group {
			b.WriteString(formatBinding(binding))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatBinding(binding key.Binding) string {
	help := binding.Help()
	return fmt.Sprintf("%-12s %s", help.Key, help.Desc)
}

// wrapWithBorder adds the status bar and the outer border.
func (m Model) wrapWithBorder(content string) string {
	return m.theme.BorderedBox.
		Width(m.width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, content, "", m.renderStatusBar()))
}

// renderStatusBar renders the bottom status bar.
func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.lastError != nil:
		left = m.theme.StatusError.Render("Error: " + m.lastError.Error())
	case m.pending:
		left = m.theme.StatusInfo.Render("Saving...")
	case m.status != "":
		left = m.theme.StatusSuccess.Render(m.status)
	}

	counts := m.theme.Subtitle.Render(fmt.Sprintf("approved %d  rejected %d  skipped %d",
		m.stats.Approved, m.stats.Rejected, m.stats.Skipped))

	hints := make([]string, 0, len(m.keymap.ShortHelp()))
	for _, binding := range m.keymap.ShortHelp() {
		help := binding.Help()
		hints = append(hints, help.Key+" "+help.Desc)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		left,
		counts,
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(strings.Join(hints, " • ")),
	)
}
