package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/hostpage"
	"gtmvars/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// rowJS finds the first row whose name anchor text equals name and reads, or
// clicks then reads, its checkbox.
const rowJS = `
(anchorSel, boxSel, name, click) => {
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
	const anchor = Array.from(document.querySelectorAll(anchorSel)).find(a => norm(a.textContent) === name);
	if (!anchor) return { found: false, checked: false };
	const row = anchor.closest('tr');
	const box = row ? row.querySelector(boxSel) : null;
	if (!box) return { found: false, checked: false };
	if (click) box.click();
	return { found: true, checked: box.getAttribute('aria-checked') === 'true' };
}
`

// Tab is an attached Tag Manager page.
type Tab struct {
	page *rod.Page
	url  string
	cfg  Config
}

func newTab(page *rod.Page, url string, cfg Config) *Tab {
	return &Tab{page: page, url: url, cfg: cfg}
}

// URL is the tab URL at attach time.
func (t *Tab) URL() string { return t.url }

// Snapshot returns the serialized document.
func (t *Tab) Snapshot(ctx context.Context, _ hostpage.SnapshotRequest) (hostpage.SnapshotResponse, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "Snapshot")
	defer timer.Stop()

	p := t.page.Context(ctx).Timeout(t.cfg.NavigationTimeout())
	html, err := p.HTML()
	if err != nil {
		return hostpage.SnapshotResponse{}, fmt.Errorf("snapshot page: %w", err)
	}
	url := t.url
	if info, err := p.Info(); err == nil {
		url = info.URL
	}
	return hostpage.SnapshotResponse{URL: url, HTML: html}, nil
}

type rowResult struct {
	Found   bool `json:"found"`
	Checked bool `json:"checked"`
}

func (t *Tab) row(ctx context.Context, name string, click bool) (rowResult, error) {
	sel := t.cfg.Selectors
	res, err := t.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           rowJS,
		JSArgs:       []interface{}{sel.AnchorSelector(), sel.RowCheckbox, name, click},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return rowResult{}, fmt.Errorf("evaluate row %q: %w", name, err)
	}
	return decodeRow(name, res)
}

func decodeRow(name string, res *proto.RuntimeRemoteObject) (rowResult, error) {
	if res == nil {
		return rowResult{}, fmt.Errorf("evaluate row %q: no result", name)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return rowResult{}, fmt.Errorf("marshal row result: %w", err)
	}
	var out rowResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return rowResult{}, fmt.Errorf("decode row result: %w", err)
	}
	return out, nil
}

// RowState reads the checkbox of the named row.
func (t *Tab) RowState(ctx context.Context, req hostpage.RowStateRequest) (hostpage.RowStateResponse, error) {
	r, err := t.row(ctx, req.Name, false)
	if err != nil {
		return hostpage.RowStateResponse{}, err
	}
	return hostpage.RowStateResponse{Found: r.Found, Checked: r.Checked}, nil
}

// ClickRow clicks the checkbox of the named row.
func (t *Tab) ClickRow(ctx context.Context, req hostpage.ClickRowRequest) (hostpage.ClickRowResponse, error) {
	r, err := t.row(ctx, req.Name, true)
	if err != nil {
		return hostpage.ClickRowResponse{}, err
	}
	logging.BrowserDebug("Clicked row checkbox %q (found=%v checked=%v)", req.Name, r.Found, r.Checked)
	return hostpage.ClickRowResponse{Found: r.Found, Checked: r.Checked}, nil
}

// Delete clicks the delete button, then waits for the confirm dialog and
// confirms it. gtm.ErrConfirmTimeout means the dialog never appeared.
func (t *Tab) Delete(ctx context.Context, req hostpage.DeleteRequest) (hostpage.DeleteResponse, error) {
	sel := t.cfg.Selectors
	wait := req.ConfirmTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}

	btn, err := t.page.Context(ctx).Timeout(wait).Element(sel.DeleteButton)
	if err != nil {
		return hostpage.DeleteResponse{}, fmt.Errorf("delete button %q: %w", sel.DeleteButton, err)
	}
	if err := btn.CancelTimeout().Click(proto.InputMouseButtonLeft, 1); err != nil {
		return hostpage.DeleteResponse{}, fmt.Errorf("click delete: %w", err)
	}

	confirm, err := t.page.Context(ctx).Timeout(wait).Element(sel.ConfirmButton)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return hostpage.DeleteResponse{}, gtm.ErrConfirmTimeout
		}
		return hostpage.DeleteResponse{}, fmt.Errorf("confirm button %q: %w", sel.ConfirmButton, err)
	}
	if err := confirm.CancelTimeout().Click(proto.InputMouseButtonLeft, 1); err != nil {
		return hostpage.DeleteResponse{}, fmt.Errorf("click confirm: %w", err)
	}
	return hostpage.DeleteResponse{Confirmed: true}, nil
}

// Cookies exports the browser cookies that apply to urls.
func (t *Tab) Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error) {
	res, err := proto.NetworkGetCookies{Urls: urls}.Call(t.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	logging.BrowserDebug("Exported %d cookies", len(res.Cookies))
	return toHTTPCookies(res.Cookies), nil
}

func toHTTPCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

var _ hostpage.Host = (*Tab)(nil)
