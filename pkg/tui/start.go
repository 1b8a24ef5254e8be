package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the terminal until the user quits or ctx is cancelled.
func Start(ctx context.Context, opts Options) error {
	if opts.Watcher == nil || opts.Config == nil {
		return fmt.Errorf("terminal needs a watcher and a config")
	}
	if opts.Version != "" {
		Version = opts.Version
	}
	m := initialModel(ctx, opts)
	defer opts.Watcher.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal: %w", err)
	}
	return nil
}
