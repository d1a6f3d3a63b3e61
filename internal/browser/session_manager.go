// Package browser attaches to the user's Chrome over the DevTools protocol
// and exposes the Tag Manager tab as a hostpage.Host.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/hostpage"
	"gtmvars/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `json:"debugger_url"`
	Launch              []string `json:"launch"`
	Headless            bool     `json:"headless"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	// TabMatch is the host substring that identifies a Tag Manager tab.
	TabMatch  string             `json:"tab_match"`
	Selectors hostpage.Selectors `json:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		NavigationTimeoutMs: 30000,
		TabMatch:            "tagmanager.google.com",
		Selectors:           hostpage.DefaultSelectors(),
	}
}

// IsHeadless returns the headless setting.
func (c Config) IsHeadless() bool {
	return c.Headless
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SessionManager owns the CDP connection. A Chrome it launched is closed on
// Shutdown; one it attached to is only disconnected.
type SessionManager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	launched   bool
	cancel     context.CancelFunc
	controlURL string // WebSocket URL for DevTools
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	if len(cfg.Selectors.AnchorClasses) == 0 {
		cfg.Selectors = hostpage.DefaultSelectors()
	}
	return &SessionManager{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting: %v", err)
		m.disconnectLocked()
	}

	controlURL := m.cfg.DebuggerURL
	launched := false
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
		for _, rawFlag := range m.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Retry without the custom flags
			fallback := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			url = alt
		}
		controlURL = url
		launched = true
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.IsHeadless()).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
		launched = true
	}

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	browser := rod.New().ControlURL(controlURL).Context(connCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.launched = launched
	m.cancel = cancel
	m.controlURL = controlURL
	logging.Browser("Connected to %s (launched=%v)", controlURL, launched)
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown releases the connection.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectLocked()
}

func (m *SessionManager) disconnectLocked() error {
	var err error
	if m.browser != nil && m.launched {
		err = m.browser.Close()
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.browser = nil
	m.launched = false
	m.controlURL = ""
	return err
}

// TabInfo is the subset of a CDP target used to pick the active tab.
type TabInfo struct {
	TargetID string
	URL      string
	Title    string
}

// Tabs lists the open pages.
func (m *SessionManager) Tabs(ctx context.Context) ([]TabInfo, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	res, err := proto.TargetGetTargets{}.Call(b.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var tabs []TabInfo
	for _, info := range res.TargetInfos {
		if info.Type != proto.TargetTargetInfoTypePage {
			continue
		}
		tabs = append(tabs, TabInfo{TargetID: string(info.TargetID), URL: info.URL, Title: info.Title})
	}
	return tabs, nil
}

// ActiveTab resolves the Tag Manager variables tab. It prefers a page on the
// configured host showing /variables, then any non-internal page.
func (m *SessionManager) ActiveTab(ctx context.Context) (*Tab, error) {
	tabs, err := m.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := pickTab(tabs, m.cfg.TabMatch)
	if !ok {
		return nil, gtm.ErrNoActiveTab
	}

	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	page, err := b.PageFromTarget(proto.TargetTargetID(info.TargetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", info.TargetID, err)
	}
	logging.Browser("Active tab %s (%s)", info.TargetID, info.URL)
	return newTab(page, info.URL, m.cfg), nil
}

func pickTab(tabs []TabInfo, host string) (TabInfo, bool) {
	for _, t := range tabs {
		if (host == "" || strings.Contains(t.URL, host)) && strings.Contains(t.URL, "/variables") {
			return t, true
		}
	}
	for _, t := range tabs {
		if t.URL != "" && !isInternalURL(t.URL) {
			return t, true
		}
	}
	return TabInfo{}, false
}

func isInternalURL(url string) bool {
	internalPrefixes := []string{
		"chrome://",
		"chrome-extension://",
		"devtools://",
		"about:",
		"data:",
		"blob:",
	}
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// OpenTab opens url in a new page and returns it as a Tab. Used when gtmvars
// launched its own Chrome and no Tag Manager tab exists yet.
func (m *SessionManager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.Context(ctx).Timeout(m.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		logging.BrowserWarn("Page %s did not finish loading: %v", url, err)
	}
	logging.Browser("Opened tab %s", url)
	return newTab(page, url, m.cfg), nil
}
