package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Config holds the dependencies of an interactive review session.
type Config struct {
	Reviewer   Reviewer
	Categories CategoryLister
	Input      io.Reader
	Output     io.Writer
	OwnerID    string
}

// Run starts the review queue and blocks until the user quits or ctx is
// canceled. It returns the decisions made during the session.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if cfg.Reviewer == nil {
		return Stats{}, fmt.Errorf("reviewer is required")
	}
	if cfg.OwnerID == "" {
		return Stats{}, fmt.Errorf("owner is required")
	}

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}

	final, err := tea.NewProgram(NewModel(cfg.Reviewer, cfg.Categories, cfg.OwnerID), opts...).Run()
	var stats Stats
	if m, ok := final.(Model); ok {
		stats = m.Stats()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return stats, fmt.Errorf("review queue failed: %w", err)
	}
	return stats, ctx.Err()
}
