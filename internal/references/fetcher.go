// Package references fetches the usage references of each variable from the
// Tag Manager JSON API and classifies them into tags, triggers and linked
// variables.
package references

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	"gtmvars/internal/gtm"
	"gtmvars/internal/logging"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

// antiHijackPrefix is prepended by the API to every JSON body.
var antiHijackPrefix = regexp.MustCompile(`^\)\]\}',?\n`)

var (
	errMissingPrefix = errors.New("response is missing the )]}' prefix")
	errNoURL         = errors.New("variable has no reference URL")
)

// maxBody bounds a single references response.
const maxBody = 8 << 20

// Fetcher issues reference lookups against the API.
type Fetcher struct {
	client      *http.Client
	concurrency int
	timeout     time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConcurrency bounds the number of requests in flight.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// New returns a Fetcher using client, which must carry the session cookies.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:      client,
		concurrency: 8,
		timeout:     20 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewCookieJar seeds a jar with cookies exported from the browser for apiBase.
func NewCookieJar(apiBase string, cookies []*http.Cookie) (http.CookieJar, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	jar.SetCookies(u, cookies)
	return jar, nil
}

// Fetch performs one credentialed lookup. Failures are returned as
// *gtm.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, ref gtm.VariableRef) ([]gtm.Entity, error) {
	entities, err := f.fetch(ctx, ref)
	if err != nil {
		return nil, &gtm.FetchError{Variable: ref.Name, URL: ref.ReferenceURL, Err: err}
	}
	return entities, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref gtm.VariableRef) ([]gtm.Entity, error) {
	if ref.ReferenceURL == "" {
		return nil, errNoURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.ReferenceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return ParseEntities(body)
}

// FetchAll looks up every variable concurrently and waits for all of them.
// A failure degrades only its own record, which falls back to empty
// references. The output is in input order.
func (f *Fetcher) FetchAll(ctx context.Context, refs []gtm.VariableRef) []gtm.EnrichedVariable {
	timer := logging.StartTimer(logging.CategoryFetch, "FetchAll")
	defer timer.Stop()

	out := make([]gtm.EnrichedVariable, len(refs))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			entities, err := f.Fetch(ctx, ref)
			if err != nil {
				logging.FetchDebug("%v", err)
				out[i] = gtm.Unreferenced(ref)
				return nil
			}
			out[i] = gtm.Classify(ref.Name, ref.Type, entities)
			return nil
		})
	}
	_ = g.Wait()

	logging.Fetch("Fetched references for %d variables", len(refs))
	return out
}

// StripPrefix removes the anti-hijacking prefix, which must be present.
func StripPrefix(body []byte) ([]byte, error) {
	loc := antiHijackPrefix.FindIndex(body)
	if loc == nil {
		return nil, errMissingPrefix
	}
	return body[loc[1]:], nil
}

type referencesResponse struct {
	Default *struct {
		Entity []gtm.Entity `json:"entity"`
	} `json:"default"`
}

// ParseEntities strips the prefix and reads default.entity. A missing path
// yields an empty, non-nil slice.
func ParseEntities(body []byte) ([]gtm.Entity, error) {
	payload, err := StripPrefix(body)
	if err != nil {
		return nil, err
	}

	var resp referencesResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode references: %w", err)
	}
	if resp.Default == nil || resp.Default.Entity == nil {
		return []gtm.Entity{}, nil
	}
	return resp.Default.Entity, nil
}
