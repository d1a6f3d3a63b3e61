package main

import (
	"fmt"
	"time"

	"gtmvars/cmd/gtmvars/ui"
	"gtmvars/internal/export"
	"gtmvars/internal/logging"
	"gtmvars/internal/table"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the variables table with references",
	RunE:  runList,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the variables table as CSV",
	Long: `Writes the selected rows, or when nothing is selected the rows matching
--query, as a UTF-8 CSV with every field quoted.`,
	RunE: runExport,
}

const listCellWidth = 48

func runList(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")

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
	state := res.State.WithQuery(query)
	fmt.Fprint(cmd.OutOrStdout(), renderList(res.Table, state))
	return nil
}

// renderList prints visible rows with a marker on selected ones.
func renderList(tbl *table.Table, state table.ViewState) string {
	header := append([]string{""}, tbl.Header()...)
	st := ui.NewSimpleTable("GTM Variables", header)
	st.MaxCellWidth = listCellWidth
	visible := tbl.Visible(state)
	for _, r := range visible {
		mark := ""
		if state.IsSelected(r.Name()) {
			mark = "*"
		}
		st.AddRow(append([]string{mark}, r.Cells()...)...)
	}
	out := st.View(ui.DefaultStyles())
	out += fmt.Sprintf("%d of %d variables", len(visible), tbl.Len())
	if counter := table.CounterText(tbl.SelectedCount(state)); counter != "" {
		out += ", " + counter
	}
	return out + "\n"
}

func runExport(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	dir, _ := cmd.Flags().GetString("out")
	dateStamp, _ := cmd.Flags().GetBool("date-stamp")
	if dir == "" {
		dir = cfg.Export.Dir
	}
	dateStamp = dateStamp || cfg.Export.DateStamp

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

	data, rows := export.Table(res.Table, res.State.WithQuery(query))
	path, err := export.WriteFile(dir, export.Filename(cfg.Export.Filename, dateStamp, time.Now()), data)
	if err != nil {
		return err
	}
	logging.Audit().ExportWritten(path, rows)
	logger.Info("export written", zap.String("path", path), zap.Int("rows", rows))
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d row(s) to %s\n", rows, path)
	return nil
}
