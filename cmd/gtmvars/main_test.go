package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gtmvars/internal/config"
	"gtmvars/internal/gtm"
	"gtmvars/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const savedPage = `<html><body><div data-table-id="variable-list-user-defined"><table>
<tr><td><a class="fill-cell wd-variable-name md-gtm-theme" href="#/container/accounts/1/containers/2/workspaces/3/variables/4">campaignID</a></td><td></td><td>Constant</td></tr>
</table></div></body></html>`

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("page.html", []byte(savedPage), 0644))
	t.Cleanup(func() { _ = scanCmd.Flags().Set("json", "false") })

	out, err := runRoot(t, "scan", "--html", "page.html")
	require.NoError(t, err)
	assert.Contains(t, out, "1 user-defined variables")
	assert.Contains(t, out, "campaignID")

	out, err = runRoot(t, "scan", "--html", "page.html", "--json")
	require.NoError(t, err)
	var refs []gtm.VariableRef
	require.NoError(t, json.Unmarshal([]byte(out), &refs))
	assert.Equal(t, []gtm.VariableRef{{
		Name:         "campaignID",
		Type:         "Constant",
		ReferenceURL: "https://tagmanager.google.com/api/accounts/1/containers/2/workspaces/3/variables/4/references",
	}}, refs)
}

func TestScanCommand_EmptyPage(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("page.html", []byte("<html></html>"), 0644))

	_, err := runRoot(t, "scan", "--html", "page.html")
	assert.ErrorIs(t, err, gtm.ErrEmptyResult)
}

func TestLoadConfig_FlagOverrideAndValidation(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { configPath, debuggerURL = "", "" })

	configPath = filepath.Join(dir, "missing.yaml")
	debuggerURL = "ws://127.0.0.1:9222/devtools/browser/abc"
	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, debuggerURL, c.Browser.DebuggerURL)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("table:\n  columns: [name, owner]\n"), 0644))
	configPath = bad
	_, err = loadConfig()
	assert.ErrorContains(t, err, "owner")
}

func TestConfigMapping(t *testing.T) {
	c := config.DefaultConfig()
	c.Table.Columns = []string{"name", "tags"}
	c.Table.SearchScope = "name"
	c.Host.ConfirmTimeout = "2s"

	bc := browserConfig(c)
	assert.Equal(t, "a.fill-cell.wd-variable-name.md-gtm-theme", bc.Selectors.AnchorSelector())
	assert.Equal(t, "tagmanager.google.com", bc.TabMatch)
	assert.Equal(t, 30000, bc.NavigationTimeoutMs)

	opts, err := loaderOptions(c)
	require.NoError(t, err)
	assert.Equal(t, []table.Column{table.ColumnName, table.ColumnTags}, opts.Columns)
	assert.Equal(t, table.ScopeName, opts.Scope)
	assert.Equal(t, "2s", opts.ConfirmTimeout.String())
	assert.Equal(t, "variable-list-user-defined", opts.Scrape.TableID)
	assert.Len(t, opts.FetchOptions, 2)
}

func TestRenderList(t *testing.T) {
	logger = zap.NewNop()
	tbl := table.Build([]gtm.EnrichedVariable{
		{VariableName: "campaignID", VariableType: "Constant", Tags: []string{"GA4 Config"}},
		{VariableName: "orphan", VariableType: "Constant"},
	}, nil)
	state := table.NewViewState(table.ScopeRow)
	state.SetSelected("orphan", true)

	out := renderList(tbl, state)
	assert.Contains(t, out, "GA4 Config")
	assert.Contains(t, out, "2 of 2 variables, 1 selected")

	out = renderList(tbl, state.WithQuery("ga4"))
	assert.Contains(t, out, "1 of 2 variables, 1 selected")
	assert.NotContains(t, out, "orphan")
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
