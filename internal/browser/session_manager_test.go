package browser

import (
	"context"
	"testing"
	"time"

	"gtmvars/internal/hostpage"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func TestPickTab(t *testing.T) {
	const host = "tagmanager.google.com"
	gtmVars := TabInfo{TargetID: "2", URL: "https://tagmanager.google.com/#/container/accounts/1/containers/2/workspaces/3/variables"}
	gtmTags := TabInfo{TargetID: "3", URL: "https://tagmanager.google.com/#/container/accounts/1/containers/2/workspaces/3/tags"}
	internal := TabInfo{TargetID: "1", URL: "chrome://newtab/"}
	other := TabInfo{TargetID: "4", URL: "https://example.com/"}

	tests := []struct {
		name   string
		tabs   []TabInfo
		wantID string
		wantOK bool
	}{
		{"prefers variables page", []TabInfo{internal, other, gtmTags, gtmVars}, "2", true},
		{"falls back to first non-internal", []TabInfo{internal, gtmTags, other}, "3", true},
		{"only internal pages", []TabInfo{internal, {TargetID: "5", URL: "about:blank"}}, "", false},
		{"no pages", nil, "", false},
		{"variables on another host is not preferred", []TabInfo{other, {TargetID: "6", URL: "https://example.com/variables"}}, "4", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickTab(tt.tabs, host)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.TargetID)
		})
	}
}

func TestIsInternalURL(t *testing.T) {
	assert.True(t, isInternalURL("devtools://devtools/bundled/inspector.html"))
	assert.True(t, isInternalURL("chrome-extension://abc/popup.html"))
	assert.False(t, isInternalURL("https://tagmanager.google.com/"))
}

func TestToHTTPCookies(t *testing.T) {
	got := toHTTPCookies([]*proto.NetworkCookie{
		{Name: "SID", Value: "abc", Domain: ".google.com", Path: "/", Secure: true, HTTPOnly: true},
		nil,
	})
	require.Len(t, got, 1)
	assert.Equal(t, "SID", got[0].Name)
	assert.Equal(t, "abc", got[0].Value)
	assert.Equal(t, ".google.com", got[0].Domain)
	assert.True(t, got[0].Secure)
	assert.True(t, got[0].HttpOnly)
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout())
	assert.Equal(t, hostpage.DefaultSelectors(), cfg.Selectors)

	m := NewSessionManager(Config{})
	assert.Equal(t, hostpage.DefaultSelectors(), m.cfg.Selectors)
	assert.False(t, m.IsConnected())
	assert.Empty(t, m.ControlURL())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestDecodeRow(t *testing.T) {
	_, err := decodeRow("orphan", nil)
	require.Error(t, err)
	assert.Equal(t, `evaluate row "orphan": no result`, err.Error())

	got, err := decodeRow("orphan", &proto.RuntimeRemoteObject{
		Value: gson.New(map[string]interface{}{"found": true, "checked": true}),
	})
	require.NoError(t, err)
	assert.Equal(t, rowResult{Found: true, Checked: true}, got)
}
