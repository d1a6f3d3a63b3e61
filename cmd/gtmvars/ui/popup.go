package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gtmvars/internal/export"
	"gtmvars/internal/gtm"
	"gtmvars/internal/logging"
	"gtmvars/internal/popup"
	gtable "gtmvars/internal/table"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Loader is what the popup needs from popup.Loader.
type Loader interface {
	Load(ctx context.Context) (*popup.Result, error)
}

// ExportOptions say where an export lands.
type ExportOptions struct {
	Dir       string
	Filename  string
	DateStamp bool
}

// Options configure the popup.
type Options struct {
	Export ExportOptions
	Now    func() time.Time
}

const (
	maxColumnWidth = 40
	checkboxOn     = "[x] "
	checkboxOff    = "[ ] "
	deleteMarker   = " ×"
)

// Messages from background commands.
type (
	loadedMsg struct {
		res *popup.Result
		err error
	}
	toggledMsg struct {
		name string
		err  error
	}
	// toggleReq is one selection change waiting for host sync.
	toggleReq struct {
		name    string
		checked bool
	}
	deletedMsg struct {
		names []string
		table *gtable.Table
		state gtable.ViewState
		err   error
	}
	exportedMsg struct {
		path string
		rows int
		err  error
	}
)

// PopupModel is the variables popup: a spinner while loading, an error
// area, the search toolbar with its counter, and the table.
type PopupModel struct {
	ctx    context.Context
	loader Loader
	opts   Options

	width  int
	height int

	loading bool
	busy    bool // a bulk delete is in flight
	// Host sync runs one toggle at a time, in keypress order.
	syncing bool
	pending []toggleReq
	spinner spinner.Model
	errText string
	status  string

	res     *popup.Result
	visible []gtable.Row
	table   table.Model

	search        textinput.Model
	searchFocused bool

	showHelp bool
	help     string

	styles Styles
}

// NewPopupModel creates the popup. Loading starts with Init.
func NewPopupModel(ctx context.Context, loader Loader, opts Options) PopupModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	si := textinput.New()
	si.Placeholder = "Search variables..."
	si.CharLimit = 100
	si.Width = 40

	t := table.New(
		table.WithFocused(true),
		table.WithHeight(15),
	)

	styles := DefaultStyles()
	sp.Style = styles.Spinner

	return PopupModel{
		ctx:     ctx,
		loader:  loader,
		opts:    opts,
		loading: true,
		spinner: sp,
		search:  si,
		table:   t,
		styles:  styles,
	}
}

// Init starts the first load.
func (m PopupModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m PopupModel) loadCmd() tea.Cmd {
	ctx, loader := m.ctx, m.loader
	return func() tea.Msg {
		res, err := loader.Load(ctx)
		return loadedMsg{res: res, err: err}
	}
}

// Update handles messages.
func (m PopupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.loading && !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.res = nil
			m.errText = popup.Message(msg.err)
			logging.UIError("Load failed: %v", msg.err)
			m.refresh()
			return m, nil
		}
		m.res = msg.res
		m.errText = ""
		m.refresh()
		return m, nil

	case toggledMsg:
		switch {
		case errors.Is(msg.err, gtm.ErrRowNotFound):
			m.status = fmt.Sprintf("%q saved; no matching row on the page", msg.name)
		case msg.err != nil:
			m.errText = msg.err.Error()
		}
		if len(m.pending) == 0 {
			m.syncing = false
			return m, nil
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		return m, m.toggleCmd(next)

	case deletedMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			if msg.names == nil {
				return m, nil
			}
		}
		if m.res != nil && msg.table != nil {
			m.res.Table = msg.table
			m.res.State = msg.state
		}
		m.status = fmt.Sprintf("Deleted %d variable(s)", len(msg.names))
		m.refresh()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Exported %d row(s) to %s", msg.rows, msg.path)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m PopupModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.searchFocused {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.searchFocused = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.refresh()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp && m.help == "" {
			m.help = RenderHelp(helpStyle(m.styles.Theme), m.width-4)
		}
		return m, nil
	case "/":
		m.searchFocused = true
		m.search.Focus()
		return m, textinput.Blink
	case "r":
		if m.loading || m.busy {
			return m, nil
		}
		m.loading = true
		m.errText = ""
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.loadCmd())
	case " ":
		cmd := m.toggleCurrent()
		return m, cmd
	case "e":
		return m, m.exportCmd()
	case "d":
		return m.startDelete()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// toggleCurrent flips the selection of the row under the cursor. The view
// state and counter change at once; persistence and the host checkbox follow
// in the background, queued behind any toggle still in flight.
func (m *PopupModel) toggleCurrent() tea.Cmd {
	if m.res == nil || m.busy {
		return nil
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return nil
	}
	name := m.visible[i].Name()
	checked := !m.res.State.IsSelected(name)
	m.res.State.SetSelected(name, checked)
	m.status = ""
	m.refresh()

	req := toggleReq{name: name, checked: checked}
	if m.syncing {
		m.pending = append(m.pending[:len(m.pending):len(m.pending)], req)
		return nil
	}
	m.syncing = true
	return m.toggleCmd(req)
}

func (m PopupModel) toggleCmd(req toggleReq) tea.Cmd {
	ctx, syncer := m.ctx, m.res.Syncer
	return func() tea.Msg {
		return toggledMsg{name: req.name, err: syncer.Toggle(ctx, nil, req.name, req.checked)}
	}
}

func (m *PopupModel) exportCmd() tea.Cmd {
	if m.res == nil {
		return nil
	}
	data, rows := export.Table(m.res.Table, m.res.State)
	name := export.Filename(m.opts.Export.Filename, m.opts.Export.DateStamp, m.opts.Now())
	dir := m.opts.Export.Dir
	return func() tea.Msg {
		path, err := export.WriteFile(dir, name, data)
		if err == nil {
			logging.Audit().ExportWritten(path, rows)
		}
		return exportedMsg{path: path, rows: rows, err: err}
	}
}

func (m PopupModel) startDelete() (tea.Model, tea.Cmd) {
	if m.res == nil || m.busy || m.loading {
		return m, nil
	}
	if m.syncing {
		m.status = "Selection still syncing; try again in a moment"
		return m, nil
	}
	if len(m.res.Table.DeleteTargets(m.res.State)) == 0 {
		m.status = "Nothing to delete: select variables with no references"
		return m, nil
	}
	m.busy = true
	m.errText = ""
	m.status = "Deleting..."

	ctx, syncer := m.ctx, m.res.Syncer
	tbl, state := m.res.Table.Clone(), m.res.State.Clone()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		names, err := syncer.BulkDelete(ctx, tbl, &state)
		return deletedMsg{names: names, table: tbl, state: state, err: err}
	})
}

// refresh recomputes visible rows and table contents from the view state.
func (m *PopupModel) refresh() {
	if m.res == nil {
		m.visible = nil
		m.table.SetRows(nil)
		return
	}
	m.res.State = m.res.State.WithQuery(m.search.Value())
	m.visible = m.res.Table.Visible(m.res.State)

	header := m.res.Table.Header()
	rows := make([]table.Row, len(m.visible))
	for i, r := range m.visible {
		rows[i] = m.decorate(r)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := len([]rune(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	cols := make([]table.Column, len(header))
	for i, h := range header {
		w := widths[i]
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		cols[i] = table.Column{Title: h, Width: w}
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = truncate(rows[i][j], cols[j].Width)
		}
	}

	// Columns change with the data, so clear rows first to keep the
	// table's cell count consistent while swapping.
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// decorate adds the selection checkbox and delete marker to the name cell.
// Decorations exist only on screen.
func (m PopupModel) decorate(r gtable.Row) table.Row {
	cells := r.Cells()
	for i, c := range m.res.Table.Columns {
		if c != gtable.ColumnName {
			continue
		}
		selected := m.res.State.IsSelected(r.Name())
		box := checkboxOff
		if selected {
			box = checkboxOn
		}
		cells[i] = box + cells[i]
		if selected && r.Deletable() {
			cells[i] += deleteMarker
		}
	}
	return table.Row(cells)
}

// SetSize updates the size.
func (m *PopupModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.help = ""
	m.table.SetWidth(w - 4)
	if h > 10 {
		m.table.SetHeight(h - 10)
	}
}

// View renders the popup.
func (m PopupModel) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Header.Render(" GTM Variables "))
	sb.WriteString("\n\n")

	if m.showHelp {
		sb.WriteString(m.help)
		sb.WriteString(m.styles.Footer.Render("[?] Close help"))
		return sb.String()
	}

	if m.loading {
		sb.WriteString(m.spinner.View() + " Loading variables...\n\n")
	}
	if m.errText != "" {
		sb.WriteString(m.styles.Error.Render(m.errText))
		sb.WriteString("\n\n")
	}

	if m.res != nil {
		sb.WriteString(m.renderToolbar())
		sb.WriteString("\n")
		sb.WriteString(m.styles.Content.Render(m.table.View()))
		sb.WriteString("\n")
		if len(m.visible) != m.res.Table.Len() {
			sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("Showing %d of %d variables", len(m.visible), m.res.Table.Len())))
			sb.WriteString("\n")
		}
	}

	if m.busy {
		sb.WriteString(m.spinner.View() + " ")
	}
	if m.status != "" {
		sb.WriteString(m.styles.Success.Render(m.status))
		sb.WriteString("\n")
	}

	sb.WriteString(m.styles.Footer.Render("[/] Search  [space] Select  [e] Export CSV  [d] Delete selected  [r] Reload  [?] Help  [q] Quit"))
	return sb.String()
}

func (m PopupModel) renderToolbar() string {
	box := m.styles.SearchBox
	if m.searchFocused {
		box = box.BorderForeground(m.styles.Theme.Primary)
	}
	out := box.Render(m.search.View())
	if counter := gtable.CounterText(m.res.Table.SelectedCount(m.res.State)); counter != "" {
		out += "  " + m.styles.Counter.Render(counter)
	}
	return out
}
