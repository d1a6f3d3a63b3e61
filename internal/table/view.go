package table

import (
	"fmt"
	"strings"
)

// Scope selects what search matches against.
type Scope int

const (
	ScopeRow  Scope = iota // full row text
	ScopeName              // name cell only
)

// ParseScope maps "row" or "name" to a Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "", "row":
		return ScopeRow, nil
	case "name":
		return ScopeName, nil
	default:
		return ScopeRow, fmt.Errorf("unknown search scope %q", s)
	}
}

// ViewState is everything about the table that the user controls. Visibility
// and the counter are derived from it on demand, never stored.
type ViewState struct {
	Query    string
	Scope    Scope
	Selected map[string]bool
}

// NewViewState returns an empty state.
func NewViewState(scope Scope) ViewState {
	return ViewState{Scope: scope, Selected: make(map[string]bool)}
}

// WithQuery returns a copy with the search query replaced.
func (s ViewState) WithQuery(q string) ViewState {
	s.Query = q
	return s
}

// SetSelected records a selection flag.
func (s *ViewState) SetSelected(name string, on bool) {
	if s.Selected == nil {
		s.Selected = make(map[string]bool)
	}
	if on {
		s.Selected[name] = true
		return
	}
	delete(s.Selected, name)
}

// IsSelected reports the flag for name.
func (s ViewState) IsSelected(name string) bool { return s.Selected[name] }

// Matches reports whether the row passes the search filter. The match is a
// case-insensitive substring test; an empty query matches everything.
func (s ViewState) Matches(r Row) bool {
	if s.Query == "" {
		return true
	}
	hay := r.Text()
	if s.Scope == ScopeName {
		hay = r.Name()
	}
	return strings.Contains(strings.ToLower(hay), strings.ToLower(s.Query))
}

// Visible returns the rows passing the filter, in table order.
func (t *Table) Visible(s ViewState) []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if s.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Selected returns the selected rows in table order, regardless of the filter.
func (t *Table) Selected(s ViewState) []Row {
	var out []Row
	for _, r := range t.Rows {
		if s.IsSelected(r.Name()) {
			out = append(out, r)
		}
	}
	return out
}

// SelectedCount is the number of selected rows currently in the table.
func (t *Table) SelectedCount(s ViewState) int {
	return len(t.Selected(s))
}

// ExportRows returns the selected rows when any exist, else the visible rows.
func (t *Table) ExportRows(s ViewState) []Row {
	if sel := t.Selected(s); len(sel) > 0 {
		return sel
	}
	return t.Visible(s)
}

// DeleteTargets returns rows that are both selected and deletable.
func (t *Table) DeleteTargets(s ViewState) []Row {
	var out []Row
	for _, r := range t.Selected(s) {
		if r.Deletable() {
			out = append(out, r)
		}
	}
	return out
}

// CounterText is the toolbar counter: "N selected", or "" when nothing is.
func CounterText(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d selected", n)
}

// Clone returns a copy with its own selection map.
func (s ViewState) Clone() ViewState {
	sel := make(map[string]bool, len(s.Selected))
	for k, v := range s.Selected {
		sel[k] = v
	}
	s.Selected = sel
	return s
}
