package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/hostpage"
	"gtmvars/internal/logging"
	"gtmvars/internal/table"
)

// DefaultConfirmTimeout bounds the wait for the host's confirm dialog.
const DefaultConfirmTimeout = 5 * time.Second

// Syncer keeps three things agreeing on what is selected: the view state,
// the persisted flags and the host page's row checkboxes.
type Syncer struct {
	host           hostpage.Host
	store          *Store
	confirmTimeout time.Duration
}

// NewSyncer wires a host page to a flag store.
func NewSyncer(host hostpage.Host, store *Store, confirmTimeout time.Duration) *Syncer {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Syncer{host: host, store: store, confirmTimeout: confirmTimeout}
}

// Toggle persists the flag, updates state (which may be nil), then brings the
// host row checkbox to the same value. A row missing from the host page
// yields gtm.ErrRowNotFound after the flag is stored.
func (s *Syncer) Toggle(ctx context.Context, state *table.ViewState, name string, checked bool) error {
	if err := s.store.Set(name, checked); err != nil {
		return err
	}
	logging.Audit().SelectionSet(name, checked)
	if state != nil {
		state.SetSelected(name, checked)
	}
	logging.Sync("Selection %q=%v", name, checked)
	return s.reconcile(ctx, name, checked)
}

// Restore pushes checked flags into the host page for every name given,
// skipping rows the page no longer shows. It returns how many rows it found.
func (s *Syncer) Restore(ctx context.Context, names []string) (int, error) {
	found := 0
	for _, n := range names {
		err := s.reconcile(ctx, n, true)
		if errors.Is(err, gtm.ErrRowNotFound) {
			continue
		}
		if err != nil {
			return found, err
		}
		found++
	}
	logging.Sync("Restored %d/%d selections into host page", found, len(names))
	return found, nil
}

// reconcile clicks the host checkbox only when its state differs from want.
func (s *Syncer) reconcile(ctx context.Context, name string, want bool) error {
	st, err := s.host.RowState(ctx, hostpage.RowStateRequest{Name: name})
	if err != nil {
		return fmt.Errorf("read host row %q: %w", name, err)
	}
	if !st.Found {
		logging.SyncWarn("Host row %q not found", name)
		return fmt.Errorf("%w: %q", gtm.ErrRowNotFound, name)
	}
	if st.Checked == want {
		logging.SyncDebug("Host row %q already %v", name, want)
		return nil
	}
	_, err = s.host.ClickRow(ctx, hostpage.ClickRowRequest{Name: name})
	logging.Audit().HostClick(name, err)
	if err != nil {
		return fmt.Errorf("click host row %q: %w", name, err)
	}
	return nil
}

// BulkDelete deletes the rows that are selected and deletable through the
// host's own delete and confirm dialog. The host deletes every checked row, so
// all other rows of tbl are unchecked there first, and the selected ones are
// checked again afterwards. With no targets it does nothing. On success the
// rows leave tbl, their flags are dropped and state no longer selects them. On
// any failure, including gtm.ErrConfirmTimeout, nothing is removed.
func (s *Syncer) BulkDelete(ctx context.Context, tbl *table.Table, state *table.ViewState) ([]string, error) {
	targets := tbl.DeleteTargets(*state)
	if len(targets) == 0 {
		return nil, nil
	}
	names := make([]string, len(targets))
	gone := make(map[string]bool, len(targets))
	for i, r := range targets {
		names[i] = r.Name()
		gone[r.Name()] = true
	}
	var keep, reselect []string
	for _, n := range tbl.Names() {
		if gone[n] {
			continue
		}
		keep = append(keep, n)
		if state.IsSelected(n) {
			reselect = append(reselect, n)
		}
	}

	start := time.Now()
	err := s.bulkDelete(ctx, names, keep)
	s.recheck(ctx, reselect)
	logging.Audit().BulkDelete(names, time.Since(start), err)
	if err != nil {
		logging.SyncWarn("Bulk delete of %d variables failed: %v", len(names), err)
		return nil, err
	}

	for _, n := range names {
		state.SetSelected(n, false)
	}
	tbl.Remove(gone)
	if err := s.store.Delete(names...); err != nil {
		return names, fmt.Errorf("variables deleted but flags kept: %w", err)
	}
	logging.Sync("Deleted %d variables", len(names))
	return names, nil
}

func (s *Syncer) bulkDelete(ctx context.Context, names, keep []string) error {
	for _, n := range keep {
		if err := s.reconcile(ctx, n, false); err != nil && !errors.Is(err, gtm.ErrRowNotFound) {
			return err
		}
	}
	for _, n := range names {
		if err := s.reconcile(ctx, n, true); err != nil {
			return err
		}
	}
	res, err := s.host.Delete(ctx, hostpage.DeleteRequest{ConfirmTimeout: s.confirmTimeout})
	if err != nil {
		return err
	}
	if !res.Confirmed {
		return gtm.ErrConfirmTimeout
	}
	return nil
}

// recheck puts the host checkbox of each kept selected row back on.
func (s *Syncer) recheck(ctx context.Context, names []string) {
	for _, n := range names {
		if err := s.reconcile(ctx, n, true); err != nil && !errors.Is(err, gtm.ErrRowNotFound) {
			logging.SyncWarn("Re-checking %q after delete: %v", n, err)
		}
	}
}
