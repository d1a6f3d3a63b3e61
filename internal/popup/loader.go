// Package popup runs one load of the variables popup: resolve the tab, scrape
// it, fetch references, build the table and restore the persisted selection.
package popup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/hostpage"
	"gtmvars/internal/logging"
	"gtmvars/internal/references"
	"gtmvars/internal/scraper"
	"gtmvars/internal/selection"
	"gtmvars/internal/table"

	"github.com/google/uuid"
)

// Page is a host page that can also hand over its session cookies.
type Page interface {
	hostpage.Host
	Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error)
}

// TabFunc resolves the active Tag Manager tab.
type TabFunc func(ctx context.Context) (Page, error)

// Options configure a Loader.
type Options struct {
	Scrape         scraper.Options
	FetchOptions   []references.Option
	Transport      http.RoundTripper // nil means http.DefaultTransport
	Columns        []table.Column
	Scope          table.Scope
	ConfirmTimeout time.Duration
	// RestoreHost replays persisted selections into the host checkboxes.
	RestoreHost bool
}

// Result is everything the popup renders and acts on after a load.
type Result struct {
	RequestID string
	Page      Page
	Table     *table.Table
	State     table.ViewState
	Syncer    *selection.Syncer
	Duration  time.Duration
}

// Loader performs loads. It is safe to call Load again to reload.
type Loader struct {
	tab   TabFunc
	store *selection.Store
	opts  Options
}

// NewLoader creates a loader.
func NewLoader(tab TabFunc, store *selection.Store, opts Options) *Loader {
	if opts.Scrape.TableID == "" {
		opts.Scrape = scraper.DefaultOptions()
	}
	if len(opts.Columns) == 0 {
		opts.Columns = table.DefaultColumns()
	}
	return &Loader{tab: tab, store: store, opts: opts}
}

// Load runs the whole pipeline. gtm.ErrNoActiveTab and gtm.ErrEmptyResult
// are returned as-is (wrapped); per-variable fetch failures never are.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	reqID := uuid.NewString()
	log := logging.WithRequestID(logging.CategoryUI, reqID)
	start := time.Now()
	logging.Audit().Log(logging.AuditEvent{EventType: logging.AuditLoadStart, RequestID: reqID, Success: true})

	res, err := l.load(ctx, log)
	dur := time.Since(start)
	n := 0
	if res != nil {
		res.RequestID = reqID
		res.Duration = dur
		n = res.Table.Len()
	}
	logging.Audit().Load(reqID, n, dur, err)
	if err != nil {
		log.Error("Load failed after %v: %v", dur, err)
		return nil, err
	}
	log.Info("Loaded %d variables in %v", n, dur)
	return res, nil
}

func (l *Loader) load(ctx context.Context, log *logging.RequestLogger) (*Result, error) {
	page, err := l.tab(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve tab: %w", err)
	}

	snap, err := page.Snapshot(ctx, hostpage.SnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	log.Debug("Snapshot of %s (%d bytes)", snap.URL, len(snap.HTML))

	refs, err := scraper.Scrape(strings.NewReader(snap.HTML), l.opts.Scrape)
	if err != nil {
		return nil, err
	}

	client, err := l.client(ctx, page)
	if err != nil {
		return nil, err
	}
	vars := references.New(client, l.opts.FetchOptions...).FetchAll(ctx, refs)
	tbl := table.Build(vars, l.opts.Columns)

	state := table.NewViewState(l.opts.Scope)
	flags, err := l.store.All()
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	present := make(map[string]bool, tbl.Len())
	for _, n := range tbl.Names() {
		present[n] = true
	}
	var restore []string
	for name, on := range flags {
		if on {
			state.SetSelected(name, true)
			if present[name] {
				restore = append(restore, name)
			}
		}
	}

	syncer := selection.NewSyncer(page, l.store, l.opts.ConfirmTimeout)
	if l.opts.RestoreHost && len(restore) > 0 {
		if _, err := syncer.Restore(ctx, restore); err != nil {
			log.Warn("Restoring host selection failed: %v", err)
		}
	}

	return &Result{Page: page, Table: tbl, State: state, Syncer: syncer}, nil
}

func (l *Loader) client(ctx context.Context, page Page) (*http.Client, error) {
	apiBase := l.opts.Scrape.APIBase
	cookies, err := page.Cookies(ctx, apiBase)
	if err != nil {
		return nil, fmt.Errorf("export cookies: %w", err)
	}
	jar, err := references.NewCookieJar(apiBase, cookies)
	if err != nil {
		return nil, err
	}
	return &http.Client{Jar: jar, Transport: l.opts.Transport}, nil
}

// Message is the text the popup's error area shows for a failed load. The
// two expected failures read as plain guidance without wrapping.
func Message(err error) string {
	for _, known := range []error{gtm.ErrNoActiveTab, gtm.ErrEmptyResult} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
