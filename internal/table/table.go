// Package table turns enriched variables into rows of plain-text cells and
// computes what is visible, selected and deletable from an explicit view
// state.
package table

import (
	"fmt"
	"strings"

	"gtmvars/internal/gtm"
)

// Column identifies one of the fixed table columns.
type Column int

const (
	ColumnName Column = iota
	ColumnType
	ColumnTags
	ColumnTriggers
	ColumnVariables
)

var columnTitles = map[Column]string{
	ColumnName:      "Variable Name",
	ColumnType:      "Type",
	ColumnTags:      "Tags",
	ColumnTriggers:  "Triggers",
	ColumnVariables: "Variables",
}

var columnKeys = map[string]Column{
	"name":      ColumnName,
	"type":      ColumnType,
	"tags":      ColumnTags,
	"triggers":  ColumnTriggers,
	"variables": ColumnVariables,
}

// Title is the header text for the column.
func (c Column) Title() string {
	if t, ok := columnTitles[c]; ok {
		return t
	}
	return fmt.Sprintf("Column(%d)", int(c))
}

// DefaultColumns is every column in display order.
func DefaultColumns() []Column {
	return []Column{ColumnName, ColumnType, ColumnTags, ColumnTriggers, ColumnVariables}
}

// ParseColumns maps config keys (name, type, tags, triggers, variables) to columns.
func ParseColumns(keys []string) ([]Column, error) {
	if len(keys) == 0 {
		return DefaultColumns(), nil
	}
	cols := make([]Column, 0, len(keys))
	for _, k := range keys {
		c, ok := columnKeys[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", k)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func cellText(v gtm.EnrichedVariable, c Column) string {
	switch c {
	case ColumnName:
		return v.VariableName
	case ColumnType:
		return v.VariableType
	case ColumnTags:
		return v.TagList()
	case ColumnTriggers:
		return v.TriggerList()
	case ColumnVariables:
		return v.LinkedVariableList()
	default:
		return ""
	}
}

// Row is one rendered variable.
type Row struct {
	Variable gtm.EnrichedVariable
	cells    []string
}

// Name is the variable name, the key used for selection.
func (r Row) Name() string { return r.Variable.VariableName }

// Cells returns the plain-text cells in column order.
func (r Row) Cells() []string { return append([]string(nil), r.cells...) }

// Text is the row's full text, used for row-scoped search. Cells run
// together with no separator, the way the page's row text reads.
func (r Row) Text() string { return strings.Join(r.cells, "") }

// Deletable reports whether the variable may be flagged for deletion: only
// variables nothing references.
func (r Row) Deletable() bool { return !r.Variable.HasReferences() }

// Table is the rendered header plus rows, in input order.
type Table struct {
	Columns []Column
	Rows    []Row
}

// Build renders one row per record, preserving input order.
func Build(vars []gtm.EnrichedVariable, cols []Column) *Table {
	if len(cols) == 0 {
		cols = DefaultColumns()
	}
	t := &Table{Columns: cols, Rows: make([]Row, 0, len(vars))}
	for _, v := range vars {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cellText(v, c)
		}
		t.Rows = append(t.Rows, Row{Variable: v, cells: cells})
	}
	return t
}

// Header returns the column titles.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Title()
	}
	return out
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Remove drops every row whose name is in names and returns how many went.
func (t *Table) Remove(names map[string]bool) int {
	kept := t.Rows[:0]
	removed := 0
	for _, r := range t.Rows {
		if names[r.Name()] {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.Rows = kept
	return removed
}

// Names returns every row name in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Name()
	}
	return out
}

// Clone returns a copy whose row slice can be changed independently.
func (t *Table) Clone() *Table {
	return &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    append([]Row(nil), t.Rows...),
	}
}
