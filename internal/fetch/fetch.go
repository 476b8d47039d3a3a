// Package fetch retrieves live pages with robots-exclusion policy checks,
// a response size cap, and a content-type guard.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
)

// Config controls live fetch behavior.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	MaxBytes   int64
	ObeyRobots bool
}

// Result is the outcome of a live fetch. Allowed=false means the site's
// robots policy refused the fetch; that is a policy outcome, not a transport
// failure, and is never retried.
type Result struct {
	Allowed bool
	HTML    string
	Status  int
	Note    string
}

// Fetcher fetches live pages.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New creates a Fetcher. Zero config fields get conservative defaults.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "MandelaReport/1.0"
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Live fetches a page's HTML. Policy refusals come back as a Result with
// Allowed=false and a nil error; transport-level problems (network errors,
// non-HTML content, oversized bodies, HTTP errors) return an error.
func (f *Fetcher) Live(ctx context.Context, targetURL string) (*Result, error) {
	if f.cfg.ObeyRobots && !f.robotsAllowed(ctx, targetURL) {
		return &Result{Allowed: false, Note: "robots disallow"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: live page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("fetch: status %d", resp.StatusCode)
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ctype, "text/html") {
		return nil, eris.Errorf("fetch: non-HTML content (%s)", ctype)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, eris.Errorf("fetch: response exceeds %d bytes", f.cfg.MaxBytes)
	}

	return &Result{
		Allowed: true,
		HTML:    string(body),
		Status:  resp.StatusCode,
		Note:    "ok",
	}, nil
}

// robotsAllowed checks the site's robots.txt for the configured user agent.
// Any failure fetching or parsing robots.txt is treated as a refusal.
func (f *Fetcher) robotsAllowed(ctx context.Context, targetURL string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	group, err := robotstxt.FromResponse(resp)
	if err != nil {
		return false
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return group.FindGroup(f.cfg.UserAgent).Test(path)
}
