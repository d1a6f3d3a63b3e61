// Package scraper extracts user-defined variable descriptors from a snapshot
// of the Tag Manager variables page.
package scraper

import (
	"fmt"
	"io"
	"strings"

	"gtmvars/internal/gtm"
	"gtmvars/internal/logging"

	"golang.org/x/net/html"
)

// accountsSegment is the literal path segment the reference URL is rebuilt from.
const accountsSegment = "accounts"

// Options describes where the variables live in the page.
type Options struct {
	TableID       string   // value of the data-table-id attribute on the table region
	AnchorClasses []string // classes the name anchor must carry, all of them
	APIBase       string   // scheme and host of the references API
}

// DefaultOptions matches the current Tag Manager markup.
func DefaultOptions() Options {
	return Options{
		TableID:       "variable-list-user-defined",
		AnchorClasses: []string{"fill-cell", "wd-variable-name", "md-gtm-theme"},
		APIBase:       "https://tagmanager.google.com",
	}
}

// Scrape parses an HTML document and returns one VariableRef per row of the
// user-defined variables table, in document order. Rows without a name anchor
// are skipped. It returns gtm.ErrEmptyResult when nothing matched.
func Scrape(r io.Reader, opts Options) ([]gtm.VariableRef, error) {
	timer := logging.StartTimer(logging.CategoryScrape, "Scrape")
	defer timer.Stop()

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var refs []gtm.VariableRef
	seen := make(map[*html.Node]bool)
	for _, region := range findAll(doc, func(n *html.Node) bool {
		return getAttr(n, "data-table-id") == opts.TableID
	}) {
		for _, row := range findAll(region, isElement("tr")) {
			if seen[row] {
				continue
			}
			seen[row] = true

			ref, ok := scrapeRow(row, opts)
			if !ok {
				continue
			}
			refs = append(refs, ref)
		}
	}

	if len(refs) == 0 {
		return nil, gtm.ErrEmptyResult
	}
	logging.Scrape("Scraped %d user-defined variables", len(refs))
	return refs, nil
}

func scrapeRow(row *html.Node, opts Options) (gtm.VariableRef, bool) {
	anchor := findFirst(row, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && hasClasses(n, opts.AnchorClasses)
	})
	if anchor == nil {
		return gtm.VariableRef{}, false
	}

	ref := gtm.VariableRef{Name: textContent(anchor)}
	if cell := elementChild(row, 2); cell != nil {
		ref.Type = textContent(cell)
	}

	href := getAttr(anchor, "href")
	if url, ok := ReferenceURL(opts.APIBase, href); ok {
		ref.ReferenceURL = url
	} else {
		logging.ScrapeDebug("Variable %q has no accounts link (href=%q)", ref.Name, href)
	}
	return ref, true
}

// ReferenceURL rewrites a variable detail link into the references API path:
// everything after the first "accounts" is kept and appended to
// <apiBase>/api/accounts, followed by /references.
func ReferenceURL(apiBase, href string) (string, bool) {
	_, rest, ok := strings.Cut(href, accountsSegment)
	if !ok {
		return "", false
	}
	return strings.TrimRight(apiBase, "/") + "/api/" + accountsSegment + rest + "/references", true
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// findAll returns every descendant of n (excluding n) matching pred, in
// document order.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// elementChild returns the idx-th element child, ignoring text and comments.
func elementChild(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

func hasClasses(n *html.Node, want []string) bool {
	have := strings.Fields(getAttr(n, "class"))
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// textContent collects the text under n with whitespace runs collapsed,
// skipping script and style contents.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		switch p.Type {
		case html.TextNode:
			sb.WriteString(p.Data)
			return
		case html.ElementNode:
			if p.Data == "script" || p.Data == "style" {
				return
			}
		}
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
