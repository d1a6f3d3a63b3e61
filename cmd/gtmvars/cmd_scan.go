package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"gtmvars/cmd/gtmvars/ui"
	"gtmvars/internal/gtm"
	"gtmvars/internal/scraper"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scrape a saved variables page without contacting Tag Manager",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("html")
	asJSON, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")
	out := cmd.OutOrStdout()

	if watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchScan(ctx, out, path, asJSON)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	refs, err := scraper.Scrape(f, scrapeOptions(cfg))
	if err != nil {
		return err
	}
	return printRefs(out, refs, asJSON)
}

// watchScan reprints the scrape every time the saved page changes.
func watchScan(ctx context.Context, out io.Writer, path string, asJSON bool) error {
	return scraper.Watch(ctx, path, scrapeOptions(cfg), func(refs []gtm.VariableRef, err error) {
		if err != nil {
			logger.Warn("scan failed", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(out, "scan: %v\n", err)
			return
		}
		if err := printRefs(out, refs, asJSON); err != nil {
			logger.Warn("print failed", zap.Error(err))
		}
	})
}

func printRefs(out io.Writer, refs []gtm.VariableRef, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	}

	st := ui.NewSimpleTable(fmt.Sprintf("%d user-defined variables", len(refs)), []string{"Variable Name", "Type", "References URL"})
	for _, r := range refs {
		st.AddRow(r.Name, r.Type, r.ReferenceURL)
	}
	fmt.Fprint(out, st.View(ui.DefaultStyles()))
	return nil
}
