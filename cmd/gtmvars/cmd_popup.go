package main

import (
	"context"
	"fmt"

	"gtmvars/cmd/gtmvars/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var popupCmd = &cobra.Command{
	Use:   "popup",
	Short: "Open the interactive variables popup (default command)",
	Long: `Shows the user-defined variables of the open Tag Manager page with the tags,
triggers and variables that reference each one.

Keys: / search, space select, e export CSV, d delete selected unreferenced
variables, r reload, q quit.`,
	RunE: runPopup,
}

func runPopup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cfg, true)
	if err != nil {
		return err
	}
	defer s.close()

	// Quitting discards in-flight work with the context.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	model := ui.NewPopupModel(ctx, s.loader, ui.Options{
		Export: ui.ExportOptions{
			Dir:       cfg.Export.Dir,
			Filename:  cfg.Export.Filename,
			DateStamp: cfg.Export.DateStamp,
		},
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("popup: %w", err)
	}
	return nil
}
