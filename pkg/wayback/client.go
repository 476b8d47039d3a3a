// Package wayback provides a client for the Internet Archive CDX index and
// archived page retrieval.
package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// cdxTimeLayout is the capture timestamp format used by the CDX API.
const cdxTimeLayout = "20060102150405"

// Capture is one archived capture of a URL known to the CDX index.
type Capture struct {
	Timestamp  time.Time `json:"timestamp"`
	Original   string    `json:"original"`
	ArchiveURL string    `json:"archive_url"`
}

// Query describes a CDX index lookup. Zero Since/Until leave the bound open.
type Query struct {
	URL   string
	Since time.Time
	Until time.Time
	Limit int
}

// Client defines the archive operations used by the report pipeline.
type Client interface {
	// Captures queries the CDX index for successful, digest-deduplicated
	// captures of a URL, ordered by timestamp ascending.
	Captures(ctx context.Context, q Query) ([]Capture, error)
	// FetchSnapshot retrieves the archived HTML for a capture.
	FetchSnapshot(ctx context.Context, archiveURL string) (string, error)
}

// Option configures the wayback client.
type Option func(*httpClient)

// WithCDXBaseURL sets a custom CDX endpoint (for testing).
func WithCDXBaseURL(u string) Option {
	return func(c *httpClient) {
		c.cdxBaseURL = u
	}
}

// WithWebBaseURL sets a custom archived-page base URL (for testing).
func WithWebBaseURL(u string) Option {
	return func(c *httpClient) {
		c.webBaseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header sent to archive.org.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRateLimit caps requests per second against archive.org.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	cdxBaseURL string
	webBaseURL string
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a wayback client with archive.org defaults.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		cdxBaseURL: "https://web.archive.org/cdx/search/cdx",
		webBaseURL: "https://web.archive.org/web",
		userAgent:  "MandelaReport/1.0",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Captures(ctx context.Context, q Query) ([]Capture, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wayback: rate limit wait")
	}

	params := url.Values{}
	params.Set("url", q.URL)
	params.Set("output", "json")
	params.Set("fl", "timestamp,original,statuscode")
	params.Set("filter", "statuscode:200")
	params.Set("collapse", "digest")
	limit := q.Limit
	if limit <= 0 {
		limit = 2000
	}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if !q.Since.IsZero() {
		params.Set("from", q.Since.UTC().Format(cdxTimeLayout))
	}
	if !q.Until.IsZero() {
		params.Set("to", q.Until.UTC().Format(cdxTimeLayout))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cdxBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "wayback: create cdx request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wayback: cdx query")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("wayback: cdx status %d", resp.StatusCode)
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "wayback: decode cdx response")
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	// First row is the column header.
	captures := make([]Capture, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		ts, err := time.Parse(cdxTimeLayout, row[0])
		if err != nil {
			continue
		}
		captures = append(captures, Capture{
			Timestamp:  ts,
			Original:   row[1],
			ArchiveURL: c.archiveURL(row[0], row[1]),
		})
	}
	return captures, nil
}

func (c *httpClient) FetchSnapshot(ctx context.Context, archiveURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "wayback: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "wayback: create snapshot request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "wayback: fetch snapshot")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("wayback: snapshot status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "wayback: read snapshot body")
	}
	return string(body), nil
}

func (c *httpClient) archiveURL(ts, original string) string {
	return fmt.Sprintf("%s/%s/%s", c.webBaseURL, ts, original)
}
