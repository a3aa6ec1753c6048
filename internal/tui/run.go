package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows rep in a full screen viewer until the user quits or ctx is
// canceled.
func Run(ctx context.Context, rep *reconcile.Report, opts ...Option) error {
	if rep == nil {
		return fmt.Errorf("report is required")
	}

	program := tea.NewProgram(NewModel(rep, opts...),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("report viewer failed: %w", err)
	}
	return nil
}
