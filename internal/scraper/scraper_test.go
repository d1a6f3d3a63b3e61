package scraper

import (
	"os"
	"strings"
	"testing"

	"gtmvars/internal/gtm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrape_Fixture(t *testing.T) {
	f, err := os.Open("testdata/variables.html")
	require.NoError(t, err)
	defer f.Close()

	refs, err := Scrape(f, DefaultOptions())
	require.NoError(t, err)

	want := []gtm.VariableRef{
		{
			Name:         "campaignID",
			Type:         "Constant",
			ReferenceURL: "https://tagmanager.google.com/api/accounts/6001/containers/7002/workspaces/12/variables/5/references",
		},
		{
			Name:         "DLV - ecommerce.value",
			Type:         "Data Layer Variable",
			ReferenceURL: "https://tagmanager.google.com/api/accounts/6001/containers/7002/workspaces/12/variables/6/references",
		},
		{
			Name:         "no type",
			Type:         "",
			ReferenceURL: "https://tagmanager.google.com/api/accounts/6001/containers/7002/workspaces/12/variables/8/references",
		},
	}
	assert.Equal(t, want, refs)
}

func TestScrape_NoMatchingRows(t *testing.T) {
	docs := map[string]string{
		"empty page":      `<html><body></body></html>`,
		"other table":     `<div data-table-id="variable-list-built-in"><table><tr><td><a class="fill-cell wd-variable-name md-gtm-theme" href="/accounts/1">x</a></td></tr></table></div>`,
		"rows no anchors": `<div data-table-id="variable-list-user-defined"><table><tr><td>x</td><td>y</td><td>z</td></tr></table></div>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			refs, err := Scrape(strings.NewReader(doc), DefaultOptions())
			assert.ErrorIs(t, err, gtm.ErrEmptyResult)
			assert.Nil(t, refs)
		})
	}
}

func TestScrape_LinkWithoutAccountsKeepsVariable(t *testing.T) {
	doc := `<div data-table-id="variable-list-user-defined"><table><tr>
		<td></td><td><a class="fill-cell wd-variable-name md-gtm-theme" href="#/elsewhere">orphan</a></td><td>Constant</td>
	</tr></table></div>`

	refs, err := Scrape(strings.NewReader(doc), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "orphan", refs[0].Name)
	assert.Empty(t, refs[0].ReferenceURL)
}

func TestScrape_CustomOptions(t *testing.T) {
	doc := `<section data-table-id="vars"><table><tr>
		<td><a class="name" href="/x/accounts/9/variables/1">v1</a></td><td>ignored</td><td>Lookup Table</td>
	</tr></table></section>`

	refs, err := Scrape(strings.NewReader(doc), Options{
		TableID:       "vars",
		AnchorClasses: []string{"name"},
		APIBase:       "http://127.0.0.1:8080/",
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Lookup Table", refs[0].Type)
	assert.Equal(t, "http://127.0.0.1:8080/api/accounts/9/variables/1/references", refs[0].ReferenceURL)
}

func TestReferenceURL(t *testing.T) {
	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"#/container/accounts/1/containers/2/workspaces/3/variables/4", "https://tagmanager.google.com/api/accounts/1/containers/2/workspaces/3/variables/4/references", true},
		{"https://tagmanager.google.com/#/container/accounts/1/variables/4", "https://tagmanager.google.com/api/accounts/1/variables/4/references", true},
		{"#/container/nothing/here", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ReferenceURL("https://tagmanager.google.com", tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		assert.Equal(t, tt.want, got, tt.href)
	}
}
