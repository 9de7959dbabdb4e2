package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// RenderTable renders rows under a header using the table styles. Columns
// are padded to the widest cell.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			rendered[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}

	lines := []string{renderRow(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}

// TransactionRow formats a transaction for RenderTable. names maps category
// ids to names.
func TransactionRow(txn model.Transaction, names map[string]string) []string {
	date := "-"
	if txn.HasDate() {
		date = txn.Date.Format(model.DateLayout)
	}

	categories := make([]string, 0, len(txn.Categories))
	for _, link := range txn.Categories {
		name, ok := names[link.CategoryID]
		if !ok {
			name = link.CategoryID
		}
		categories = append(categories, name)
	}

	return []string{
		shortID(txn.ID),
		date,
		txn.Amount.String(),
		txn.Description,
		strings.Join(categories, ", "),
		strings.Join(txn.Flags.Strings(), ", "),
	}
}

// TransactionHeaders are the column names matching TransactionRow.
var TransactionHeaders = []string{"ID", "Date", "Amount", "Description", "Categories", "Flags"}

// FormatApplyResult summarizes a rule application pass.
func FormatApplyResult(result *service.ApplyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Transactions evaluated: %d\n", result.TransactionsEvaluated)
	fmt.Fprintf(&b, "  • Active rules: %d\n", result.RulesEvaluated)
	fmt.Fprintf(&b, "  • Matches: %d\n", result.Matches)
	fmt.Fprintf(&b, "  • Categories added: %d\n", result.CategoriesAdded)
	fmt.Fprintf(&b, "  • Time taken: %s", result.Duration.Round(time.Millisecond))
	b.WriteString(formatFailures(result.Failures))
	return RenderBox(RuleIcon+" Rules applied", b.String())
}

// FormatFlagResult summarizes an anomaly flagging pass.
func FormatFlagResult(result *service.FlagResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Processed: %d\n", result.Processed)
	fmt.Fprintf(&b, "  • Skipped (approved): %d\n", result.SkippedApproved)
	fmt.Fprintf(&b, "  • Flagged: %d\n", result.Flagged)

	flags := make([]string, 0, len(result.FlagsAdded))
	for flag := range result.FlagsAdded {
		flags = append(flags, string(flag))
	}
	sort.Strings(flags)
	for _, flag := range flags {
		fmt.Fprintf(&b, "    - %s: +%d\n", flag, result.FlagsAdded[model.Flag(flag)])
	}

	fmt.Fprintf(&b, "  • Time taken: %s", result.Duration.Round(time.Millisecond))
	b.WriteString(formatFailures(result.Failures))
	return RenderBox(FlagIcon+" Flagging complete", b.String())
}

func formatFailures(failures []service.ItemFailure) string {
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(FormatWarning(fmt.Sprintf("%d item(s) failed:", len(failures))))
	for _, failure := range failures {
		subject := failure.TransactionID
		if subject == "" {
			subject = "rule " + failure.RuleID
		}
		fmt.Fprintf(&b, "\n    %s: %s", shortID(subject), failure.Message)
	}
	return b.String()
}

// shortID trims a UUID to its first block for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i == 8 {
		return id[:8]
	}
	return id
}
