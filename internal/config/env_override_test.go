package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_EmptyValuesIgnored(t *testing.T) {
	t.Setenv("GTMVARS_DEBUGGER_URL", "")
	t.Setenv("GTMVARS_API_BASE", "")
	t.Setenv("GTMVARS_DB", "")
	t.Setenv("GTMVARS_LOG_LEVEL", "")

	cfg := DefaultConfig()
	cfg.Browser.DebuggerURL = "ws://kept"
	cfg.applyEnvOverrides()

	assert.Equal(t, "ws://kept", cfg.Browser.DebuggerURL)
	assert.Equal(t, DefaultConfig().Host.APIBase, cfg.Host.APIBase)
	assert.Equal(t, DefaultConfig().Store.Path, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides_AppliedByLoad(t *testing.T) {
	t.Setenv("GTMVARS_API_BASE", "http://localhost:9999")

	cfg, err := Load(t.TempDir() + "/missing.yaml")

	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Host.APIBase)
}
