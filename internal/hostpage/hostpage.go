// Package hostpage defines the round-trips gtmvars makes into the Tag Manager
// tab. Each one is a typed request/response pair so the popup and the
// selection syncer never touch the page directly.
package hostpage

import (
	"context"
	"strings"
	"time"
)

// Selectors locate the host page elements gtmvars drives.
type Selectors struct {
	AnchorClasses []string // classes on the variable name anchor
	RowCheckbox   string   // per-row checkbox carrying aria-checked
	DeleteButton  string
	ConfirmButton string
}

// DefaultSelectors matches the Tag Manager variables page.
func DefaultSelectors() Selectors {
	return Selectors{
		AnchorClasses: []string{"fill-cell", "wd-variable-name", "md-gtm-theme"},
		RowCheckbox:   "i.wd-table-row-checkbox",
		DeleteButton:  "button.icon.icon-delete.icon--button",
		ConfirmButton: "button.btn.btn-action.wd-action-dialog-confirm",
	}
}

// AnchorSelector is the CSS selector for the name anchor.
func (s Selectors) AnchorSelector() string {
	var sb strings.Builder
	sb.WriteString("a")
	for _, c := range s.AnchorClasses {
		if c = strings.TrimSpace(c); c != "" {
			sb.WriteString(".")
			sb.WriteString(c)
		}
	}
	return sb.String()
}

// SnapshotRequest asks for the serialized document.
type SnapshotRequest struct{}

// SnapshotResponse carries the page URL and its outer HTML.
type SnapshotResponse struct {
	URL  string
	HTML string
}

// RowStateRequest reads the checkbox of the first row whose name anchor text
// equals Name.
type RowStateRequest struct {
	Name string
}

// RowStateResponse reports whether the row exists and its checkbox state.
type RowStateResponse struct {
	Found   bool
	Checked bool
}

// ClickRowRequest clicks the checkbox of the first row named Name.
type ClickRowRequest struct {
	Name string
}

// ClickRowResponse is the checkbox state after the click.
type ClickRowResponse struct {
	Found   bool
	Checked bool
}

// DeleteRequest clicks the page's delete button, then waits up to
// ConfirmTimeout for the confirm button and clicks it.
type DeleteRequest struct {
	ConfirmTimeout time.Duration
}

// DeleteResponse reports that the confirm button was clicked.
type DeleteResponse struct {
	Confirmed bool
}

// Host is the Tag Manager tab as gtmvars sees it.
type Host interface {
	Snapshot(ctx context.Context, req SnapshotRequest) (SnapshotResponse, error)
	RowState(ctx context.Context, req RowStateRequest) (RowStateResponse, error)
	ClickRow(ctx context.Context, req ClickRowRequest) (ClickRowResponse, error)
	Delete(ctx context.Context, req DeleteRequest) (DeleteResponse, error)
}
