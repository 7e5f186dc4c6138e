// Package api is the HTTP client for the search backend. It knows two
// endpoints:
//
//	POST {base}/api/search        {"query": "...", "size": 10}
//	GET  {base}/api/suggestions?query=...
//
// Non-2xx responses are returned as *Error carrying the backend's "detail"
// message. Compressed responses (gzip, zstd) are decoded transparently.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/indexify/pkg/log"
	"github.com/rubiojr/indexify/pkg/version"
)

const (
	searchPath      = "/api/search"
	suggestionsPath = "/api/suggestions"

	// RequestIDHeader carries a per-request identifier for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// ErrMissingResults is returned when a successful search response has no
// "results" field.
var ErrMissingResults = errors.New("response has no results field")

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Transport overrides the underlying round tripper (tests). It is still
	// wrapped for transparent decompression.
	Transport http.RoundTripper
}

// Client talks to the search backend. It is safe for concurrent use and its
// options can be swapped at runtime with Reconfigure.
type Client struct {
	mu     sync.RWMutex
	http   *resty.Client
	opts   Options
	logger *log.Logger
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	c := &Client{logger: log.ForService("api")}
	c.Reconfigure(opts)
	return c
}

// Reconfigure replaces the base URL and timeout. Requests already in flight
// keep using the previous settings.
func (c *Client) Reconfigure(opts Options) {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	parent := opts.Transport
	if parent == nil {
		parent = http.DefaultTransport
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetTransport(gzhttp.Transport(parent)).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "indexify/"+version.Version)

	c.mu.Lock()
	c.http = rc
	c.opts = opts
	c.mu.Unlock()
}

// BaseURL returns the backend base URL currently in use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts.BaseURL
}

func (c *Client) request(ctx context.Context) (*resty.Request, string) {
	c.mu.RLock()
	rc := c.http
	c.mu.RUnlock()

	id := uuid.New().String()
	return rc.R().SetContext(ctx).SetHeader(RequestIDHeader, id), id
}

// Search runs a query against the search endpoint.
func (c *Client) Search(ctx context.Context, query string, size int) ([]SearchResult, error) {
	req, id := c.request(ctx)
	c.logger.Debugf("search %q size=%d request_id=%s", query, size, id)

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(SearchRequest{Query: query, Size: size}).
		Post(searchPath)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	if resp.IsError() {
		return nil, newError(resp.StatusCode(), resp.Body())
	}

	var body SearchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if body.Results == nil {
		return nil, ErrMissingResults
	}

	c.logger.Debugf("search %q returned %d results request_id=%s", query, len(*body.Results), id)
	return *body.Results, nil
}

// Suggestions fetches autocomplete candidates for text.
func (c *Client) Suggestions(ctx context.Context, text string) ([]Suggestion, error) {
	req, id := c.request(ctx)
	c.logger.Debugf("suggestions %q request_id=%s", text, id)

	resp, err := req.
		SetQueryParam("query", text).
		Get(suggestionsPath)
	if err != nil {
		return nil, fmt.Errorf("fetching suggestions for %q: %w", text, err)
	}
	if resp.IsError() {
		return nil, newError(resp.StatusCode(), resp.Body())
	}

	var body SuggestionsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decoding suggestions response: %w", err)
	}
	return body.Suggestions, nil
}

func newError(status int, raw []byte) *Error {
	var body errorBody
	// Bodies that are not JSON simply leave Detail empty.
	_ = json.Unmarshal(raw, &body)
	return &Error{StatusCode: status, Detail: body.Detail}
}
