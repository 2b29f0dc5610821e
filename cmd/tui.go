package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spinsapp/spins/internal/shared"
	"github.com/spinsapp/spins/internal/tasks"
	"github.com/spinsapp/spins/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for reviewing and liking
// frequently played tracks.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/spins-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine := tasks.NewLikerEngine(r.catalog, st.resolver, st.history, st.tracks)
	model := ui.NewModel(ctx, st.history, engine, r.minPlays(cmd))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
