package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StateDir is the per-workspace directory holding config, logs and the
// selection database.
const StateDir = ".gtmvars"

// Config holds all gtmvars configuration.
type Config struct {
	// Chrome connection
	Browser BrowserConfig `yaml:"browser"`

	// Tag Manager page and API contract
	Host HostConfig `yaml:"host"`

	// References API fan-out
	Fetch FetchConfig `yaml:"fetch"`

	// Table columns and search
	Table TableConfig `yaml:"table"`

	// CSV export
	Export ExportConfig `yaml:"export"`

	// Selection flag persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures the CDP connection.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"`       // ws:// URL of a running Chrome
	Launch            []string `yaml:"launch"`             // binary followed by flags, used when no debugger_url
	Headless          bool     `yaml:"headless"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	TabMatch          string   `yaml:"tab_match"` // substring the variables tab URL must contain
}

// HostConfig describes the Tag Manager DOM and API. These are assumptions
// about a UI gtmvars does not control.
type HostConfig struct {
	APIBase               string   `yaml:"api_base"`
	TableID               string   `yaml:"table_id"`
	NameAnchorClasses     []string `yaml:"name_anchor_classes"`
	RowCheckboxSelector   string   `yaml:"row_checkbox_selector"`
	DeleteButtonSelector  string   `yaml:"delete_button_selector"`
	ConfirmButtonSelector string   `yaml:"confirm_button_selector"`
	ConfirmTimeout        string   `yaml:"confirm_timeout"`
}

// FetchConfig configures the references fetcher.
type FetchConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
}

// TableConfig configures the rendered table.
type TableConfig struct {
	Columns     []string `yaml:"columns"`      // name, type, tags, triggers, variables
	SearchScope string   `yaml:"search_scope"` // row, name
}

// ExportConfig configures CSV export.
type ExportConfig struct {
	Dir       string `yaml:"dir"`
	Filename  string `yaml:"filename"`
	DateStamp bool   `yaml:"date_stamp"`
}

// StoreConfig configures the selection database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`
}

var (
	validColumns = map[string]bool{"name": true, "type": true, "tags": true, "triggers": true, "variables": true}
	validScopes  = map[string]bool{"row": true, "name": true}
	validDrivers = map[string]bool{"sqlite3": true, "sqlite": true}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			DebuggerURL:       "",
			Headless:          false,
			NavigationTimeout: "30s",
			TabMatch:          "tagmanager.google.com",
		},

		Host: HostConfig{
			APIBase:               "https://tagmanager.google.com",
			TableID:               "variable-list-user-defined",
			NameAnchorClasses:     []string{"fill-cell", "wd-variable-name", "md-gtm-theme"},
			RowCheckboxSelector:   "i.wd-table-row-checkbox",
			DeleteButtonSelector:  "button.icon.icon-delete.icon--button",
			ConfirmButtonSelector: "button.btn.btn-action.wd-action-dialog-confirm",
			ConfirmTimeout:        "5s",
		},

		Fetch: FetchConfig{
			Concurrency: 8,
			Timeout:     "20s",
		},

		Table: TableConfig{
			Columns:     []string{"name", "type", "tags", "triggers", "variables"},
			SearchScope: "row",
		},

		Export: ExportConfig{
			Dir:      ".",
			Filename: "gtm-variables.csv",
		},

		Store: StoreConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(StateDir, "selection.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config path inside the state directory.
func DefaultPath() string {
	return filepath.Join(StateDir, "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("GTMVARS_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if base := os.Getenv("GTMVARS_API_BASE"); base != "" {
		c.Host.APIBase = base
	}
	if path := os.Getenv("GTMVARS_DB"); path != "" {
		c.Store.Path = path
	}
	if level := os.Getenv("GTMVARS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	if c.Host.APIBase == "" {
		return fmt.Errorf("host.api_base is required")
	}
	if c.Host.TableID == "" {
		return fmt.Errorf("host.table_id is required")
	}
	if len(c.Host.NameAnchorClasses) == 0 {
		return fmt.Errorf("host.name_anchor_classes must name at least one class")
	}
	if len(c.Table.Columns) == 0 {
		return fmt.Errorf("table.columns must not be empty")
	}
	for _, col := range c.Table.Columns {
		if !validColumns[strings.ToLower(col)] {
			return fmt.Errorf("table.columns: unknown column %q", col)
		}
	}
	if !validScopes[c.Table.SearchScope] {
		return fmt.Errorf("table.search_scope: unknown scope %q", c.Table.SearchScope)
	}
	if !validDrivers[c.Store.Driver] {
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1")
	}
	for name, v := range map[string]string{
		"fetch.timeout":              c.Fetch.Timeout,
		"host.confirm_timeout":       c.Host.ConfirmTimeout,
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetFetchTimeout returns the per-request references timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDurationOr(c.Fetch.Timeout, 20*time.Second)
}

// GetConfirmTimeout returns how long bulk delete waits for the confirm button.
func (c *Config) GetConfirmTimeout() time.Duration {
	return parseDurationOr(c.Host.ConfirmTimeout, 5*time.Second)
}

// GetNavigationTimeout returns the page navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDurationOr(c.Browser.NavigationTimeout, 30*time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
