package ui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Keys

| Key | Action |
|---|---|
| / | Search (esc or enter to leave) |
| space | Select or clear the row under the cursor |
| e | Export CSV |
| d | Delete selected variables that have no references |
| r | Reload from the page |
| ? | Toggle this help |
| q | Quit |

## Notes

- Export writes the selected rows when any are selected, otherwise the rows matching the search.
- Selecting a row also ticks its checkbox in Tag Manager.
- Delete asks Tag Manager to delete everything checked there, then confirms its dialog.
`

// RenderHelp renders the key help with glamour using the given style
// ("light", "dark", "notty", ...).
func RenderHelp(style string, width int) string {
	if width <= 0 || width > 100 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}

func helpStyle(t Theme) string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}
