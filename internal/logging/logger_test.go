package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetForTest(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		CloseAudit()
		CloseAll()
		configMu.Lock()
		settings = Settings{}
		logsDir = ""
		configMu.Unlock()
	})
}

func readLogs(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	var sb strings.Builder
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
		require.NoError(t, err)
		sb.Write(data)
	}
	return sb.String()
}

func TestInitialize_ProductionModeWritesNothing(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{DebugMode: false}))
	Browser("should not appear")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir must not exist in production mode")
	assert.False(t, IsCategoryEnabled(CategoryBrowser))
}

func TestInitialize_RequiresDir(t *testing.T) {
	resetForTest(t)
	assert.Error(t, Initialize("", Settings{}))
}

func TestCategoriesWriteSeparateFiles(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{DebugMode: true, Level: "debug"}))
	Browser("tab resolved %s", "https://tagmanager.google.com")
	FetchDebug("fetched %d entities", 3)
	SyncWarn("row %q missing", "campaignID")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range []Category{CategoryBoot, CategoryBrowser, CategoryFetch, CategorySync} {
		_, err := os.Stat(filepath.Join(dir, "logs", date+"_"+string(cat)+".log"))
		assert.NoError(t, err, "expected log file for %s", cat)
	}
	logs := readLogs(t, dir)
	assert.Contains(t, logs, "fetched 3 entities")
	assert.Contains(t, logs, `row "campaignID" missing`)
}

func TestCategoryFilter(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"fetch": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryFetch))
	assert.True(t, IsCategoryEnabled(CategoryBrowser), "unlisted categories default to enabled")
}

func TestLevelFiltering(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{DebugMode: true, Level: "warn"}))
	StoreDebug("debug line")
	StoreError("error line")
	CloseAll()

	logs := readLogs(t, dir)
	assert.NotContains(t, logs, "debug line")
	assert.Contains(t, logs, "error line")
}

func TestRequestLoggerCarriesID(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{DebugMode: true, JSONFormat: true}))
	rl := WithRequestID(CategoryFetch, "req-123").WithField("variables", 2)
	rl.Info("load started")
	CloseAll()

	assert.Equal(t, "req-123", rl.RequestID())
	logs := readLogs(t, dir)
	assert.Contains(t, logs, `"req":"req-123"`)
	assert.Contains(t, logs, `"variables":2`)
}

func TestAuditTrail(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, Settings{DebugMode: true}))
	require.NoError(t, InitAudit())
	Audit().HostClick("campaignID", nil)
	Audit().BulkDelete([]string{"a", "b"}, 20*time.Millisecond, errors.New("confirm timeout"))
	CloseAudit()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "audit.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event":"host_click"`)
	assert.Contains(t, lines[0], `"target":"campaignID"`)
	assert.Contains(t, lines[1], `"event":"bulk_delete"`)
	assert.Contains(t, lines[1], `"error":"confirm timeout"`)
}

func TestAuditDisabledIsNoop(t *testing.T) {
	resetForTest(t)
	require.NoError(t, InitAudit())
	assert.NotPanics(t, func() { Audit().SelectionSet("x", true) })
}

func TestTimerThreshold(t *testing.T) {
	resetForTest(t)
	timer := StartTimer(CategoryFetch, "op")
	assert.GreaterOrEqual(t, timer.StopWithThreshold(time.Hour), time.Duration(0))
}
