// Package export writes table rows as CSV that spreadsheet tools open
// without an import dialog.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gtmvars/internal/logging"
	"gtmvars/internal/table"
)

// bom makes Excel read the file as UTF-8.
const bom = "\uFEFF"

// CSV renders the header and rows. Every field is double-quoted with embedded
// quotes doubled, lines are joined by "\n", and the output starts with a BOM.
func CSV(header []string, rows [][]string) []byte {
	var sb strings.Builder
	sb.WriteString(bom)
	writeLine(&sb, header)
	for _, r := range rows {
		sb.WriteByte('\n')
		writeLine(&sb, r)
	}
	return []byte(sb.String())
}

func writeLine(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
}

// Table renders the rows an export should contain for the given view: the
// selection if there is one, otherwise what the filter shows.
func Table(t *table.Table, s table.ViewState) ([]byte, int) {
	rows := t.ExportRows(s)
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.Cells()
	}
	return CSV(t.Header(), cells), len(rows)
}

// Filename returns base, or base with -YYYY-MM-DD inserted before the
// extension when dateStamp is set.
func Filename(base string, dateStamp bool, now time.Time) string {
	if base == "" {
		base = "gtm-variables.csv"
	}
	if !dateStamp {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + now.Format("2006-01-02") + ext
}

// WriteFile writes data to dir/name, creating dir if needed, and returns the
// full path.
func WriteFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	logging.Export("wrote %s (%d bytes)", path, len(data))
	return path, nil
}
