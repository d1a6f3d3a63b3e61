package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"gtmvars/internal/browser"
	"gtmvars/internal/config"
	"gtmvars/internal/hostpage"
	"gtmvars/internal/popup"
	"gtmvars/internal/references"
	"gtmvars/internal/scraper"
	"gtmvars/internal/selection"
	"gtmvars/internal/table"

	"go.uber.org/zap"
)

// session bundles what every browser-backed command needs.
type session struct {
	browser *browser.SessionManager
	store   *selection.Store
	loader  *popup.Loader
}

func selectors(c *config.Config) hostpage.Selectors {
	return hostpage.Selectors{
		AnchorClasses: c.Host.NameAnchorClasses,
		RowCheckbox:   c.Host.RowCheckboxSelector,
		DeleteButton:  c.Host.DeleteButtonSelector,
		ConfirmButton: c.Host.ConfirmButtonSelector,
	}
}

func browserConfig(c *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = c.Browser.DebuggerURL
	bc.Launch = c.Browser.Launch
	bc.Headless = c.Browser.Headless
	bc.NavigationTimeoutMs = int(c.GetNavigationTimeout().Milliseconds())
	bc.TabMatch = c.Browser.TabMatch
	bc.Selectors = selectors(c)
	return bc
}

func scrapeOptions(c *config.Config) scraper.Options {
	return scraper.Options{
		TableID:       c.Host.TableID,
		AnchorClasses: c.Host.NameAnchorClasses,
		APIBase:       c.Host.APIBase,
	}
}

func loaderOptions(c *config.Config) (popup.Options, error) {
	cols, err := table.ParseColumns(c.Table.Columns)
	if err != nil {
		return popup.Options{}, err
	}
	scope, err := table.ParseScope(c.Table.SearchScope)
	if err != nil {
		return popup.Options{}, err
	}
	return popup.Options{
		Scrape: scrapeOptions(c),
		FetchOptions: []references.Option{
			references.WithConcurrency(c.Fetch.Concurrency),
			references.WithTimeout(c.GetFetchTimeout()),
		},
		Columns:        cols,
		Scope:          scope,
		ConfirmTimeout: c.GetConfirmTimeout(),
	}, nil
}

// openSession opens the selection store and prepares a lazy Chrome
// connection. restoreHost replays persisted selections into the page on load.
func openSession(c *config.Config, restoreHost bool) (*session, error) {
	store, err := selection.OpenStore(c.Store.Driver, c.Store.Path)
	if err != nil {
		return nil, err
	}
	opts, err := loaderOptions(c)
	if err != nil {
		store.Close()
		return nil, err
	}
	opts.RestoreHost = restoreHost

	sm := browser.NewSessionManager(browserConfig(c))
	s := &session{browser: sm, store: store}
	s.loader = popup.NewLoader(s.tab, store, opts)
	return s, nil
}

// tab resolves the page to work on: --open wins over the active tab.
func (s *session) tab(ctx context.Context) (popup.Page, error) {
	if openURL != "" {
		t, err := s.browser.OpenTab(ctx, openURL)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	t, err := s.browser.ActiveTab(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *session) close() {
	if err := s.browser.Shutdown(context.Background()); err != nil && logger != nil {
		logger.Warn("browser shutdown", zap.Error(err))
	}
	_ = s.store.Close()
}

// commandContext is bounded by --timeout and cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

// load runs one popup load for the non-interactive commands.
func load(ctx context.Context, s *session) (*popup.Result, error) {
	res, err := s.loader.Load(ctx)
	if err != nil {
		return nil, errors.New(popup.Message(err))
	}
	logger.Debug("loaded variables",
		zap.String("request_id", res.RequestID),
		zap.Int("variables", res.Table.Len()),
		zap.Duration("duration", res.Duration))
	return res, nil
}
