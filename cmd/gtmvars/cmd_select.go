package main

import (
	"errors"
	"fmt"
	"strings"

	"gtmvars/internal/gtm"
	"gtmvars/internal/selection"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var selectCmd = &cobra.Command{
	Use:   "select NAME",
	Short: "Select a variable and tick its checkbox on the page",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete selected variables that nothing references",
	Long: `Deletes every selected variable with no tags, triggers or variables
referencing it, through Tag Manager's own delete and confirm dialog.
Without --yes it only prints what would be deleted.`,
	RunE: runDelete,
}

func runSelect(cmd *cobra.Command, args []string) error {
	name := args[0]
	off, _ := cmd.Flags().GetBool("off")

	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(cfg, false)
	if err != nil {
		return err
	}
	defer s.close()

	page, err := s.tab(ctx)
	if err != nil {
		return err
	}
	syncer := selection.NewSyncer(page, s.store, cfg.GetConfirmTimeout())
	err = syncer.Toggle(ctx, nil, name, !off)
	out := cmd.OutOrStdout()
	switch {
	case errors.Is(err, gtm.ErrRowNotFound):
		fmt.Fprintf(out, "Saved %q=%v; no matching row on the page\n", name, !off)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "%q selected=%v\n", name, !off)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")

	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(cfg, false)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := load(ctx, s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	targets := res.Table.DeleteTargets(res.State)
	if len(targets) == 0 {
		fmt.Fprintln(out, "Nothing to delete: no selected variable is unreferenced")
		return nil
	}
	names := make([]string, len(targets))
	for i, r := range targets {
		names[i] = r.Name()
	}
	if !yes {
		fmt.Fprintf(out, "Would delete %d variable(s): %s\nRe-run with --yes to delete.\n", len(names), strings.Join(names, ", "))
		return nil
	}

	deleted, err := res.Syncer.BulkDelete(ctx, res.Table, &res.State)
	if err != nil {
		return err
	}
	logger.Info("bulk delete", zap.Strings("variables", deleted))
	fmt.Fprintf(out, "Deleted %d variable(s): %s\n", len(deleted), strings.Join(deleted, ", "))
	return nil
}
