package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	model, detach := NewModel(ctx, opts)
	defer detach()

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run dashboard: %w", err)
	}

	return nil
}
