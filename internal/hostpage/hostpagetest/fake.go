// Package hostpagetest provides an in-memory hostpage.Host.
package hostpagetest

import (
	"context"
	"sync"

	"gtmvars/internal/gtm"
	"gtmvars/internal/hostpage"
)

// Row is one row of the fake variables table.
type Row struct {
	Name    string
	Checked bool
}

// Fake records every round-trip. Rows are matched by name, first wins.
type Fake struct {
	mu sync.Mutex

	URL  string
	HTML string
	Rows []Row

	// NoConfirm makes Delete behave as if the confirm dialog never appeared.
	NoConfirm bool
	// Err, when set, is returned by every call.
	Err error

	Clicks  []string
	Deletes int
	Deleted []string
}

// New returns a fake with the given rows, all unchecked.
func New(names ...string) *Fake {
	f := &Fake{URL: "https://tagmanager.google.com/#/container/accounts/1/containers/2/workspaces/3/variables"}
	for _, n := range names {
		f.Rows = append(f.Rows, Row{Name: n})
	}
	return f
}

func (f *Fake) find(name string) int {
	for i, r := range f.Rows {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// Snapshot returns the configured HTML.
func (f *Fake) Snapshot(ctx context.Context, _ hostpage.SnapshotRequest) (hostpage.SnapshotResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return hostpage.SnapshotResponse{}, f.Err
	}
	return hostpage.SnapshotResponse{URL: f.URL, HTML: f.HTML}, nil
}

// RowState reports the named row's checkbox.
func (f *Fake) RowState(ctx context.Context, req hostpage.RowStateRequest) (hostpage.RowStateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return hostpage.RowStateResponse{}, f.Err
	}
	i := f.find(req.Name)
	if i < 0 {
		return hostpage.RowStateResponse{}, nil
	}
	return hostpage.RowStateResponse{Found: true, Checked: f.Rows[i].Checked}, nil
}

// ClickRow flips the named row's checkbox.
func (f *Fake) ClickRow(ctx context.Context, req hostpage.ClickRowRequest) (hostpage.ClickRowResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return hostpage.ClickRowResponse{}, f.Err
	}
	i := f.find(req.Name)
	if i < 0 {
		return hostpage.ClickRowResponse{}, nil
	}
	f.Clicks = append(f.Clicks, req.Name)
	f.Rows[i].Checked = !f.Rows[i].Checked
	return hostpage.ClickRowResponse{Found: true, Checked: f.Rows[i].Checked}, nil
}

// Delete removes every checked row, as the host does, unless NoConfirm is set.
func (f *Fake) Delete(ctx context.Context, req hostpage.DeleteRequest) (hostpage.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return hostpage.DeleteResponse{}, f.Err
	}
	f.Deletes++
	if f.NoConfirm {
		return hostpage.DeleteResponse{}, gtm.ErrConfirmTimeout
	}
	kept := f.Rows[:0]
	for _, r := range f.Rows {
		if r.Checked {
			f.Deleted = append(f.Deleted, r.Name)
			continue
		}
		kept = append(kept, r)
	}
	f.Rows = kept
	return hostpage.DeleteResponse{Confirmed: true}, nil
}

// Checked returns the names of checked rows.
func (f *Fake) Checked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.Rows {
		if r.Checked {
			out = append(out, r.Name)
		}
	}
	return out
}

// ClickCount is the number of checkbox clicks so far.
func (f *Fake) ClickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Clicks)
}

var _ hostpage.Host = (*Fake)(nil)
