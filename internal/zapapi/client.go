// Package zapapi is a minimal client for the ZAP scan engine's JSON API.
// Every call is individually time-boxed so poll loops cannot hang on an
// unreachable engine; transient failures come back as *errs.PollError and
// are retried by the caller.
package zapapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
	"github.com/gauntletsec/gauntlet/internal/errs"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// MinEngineVersion is the oldest engine the driver knows how to talk to.
var MinEngineVersion = semver.MustParse("2.12.0")

// Client talks to one scan engine endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a client for the given endpoint. timeout bounds each call;
// zero means DefaultTimeout.
func New(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(endpoint, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the base URL the client targets.
func (c *Client) Endpoint() string { return c.baseURL }

// Status is one snapshot of scan progress. Progress percentages arrive as
// strings from the engine and are coerced defensively: anything
// non-numeric reads as 0.
type Status struct {
	SpiderProgress     int
	ActiveScanProgress int
	AlertCount         int
	InProgress         bool
}

// Alert is a single vulnerability alert from the engine.
type Alert struct {
	Name       string `json:"alert"`
	Risk       string `json:"risk"`
	Confidence string `json:"confidence"`
	URL        string `json:"url"`
	Evidence   string `json:"evidence,omitempty"`
	Solution   string `json:"solution,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

// Version fetches and parses the engine version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/JSON/core/view/version/", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// CheckVersion fails when the engine is older than MinEngineVersion.
// Unparseable versions (nightly builds) pass.
func (c *Client) CheckVersion(ctx context.Context) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	parsed, perr := semver.ParseTolerant(v)
	if perr != nil {
		return nil
	}
	if parsed.LT(MinEngineVersion) {
		return fmt.Errorf("scan engine at %s is version %s, need at least %s", c.baseURL, v, MinEngineVersion)
	}
	return nil
}

// Status queries spider and active-scan progress plus the alert count.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status

	var spider struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/JSON/spider/view/status/", nil, &spider); err != nil {
		return st, err
	}
	st.SpiderProgress = coerceProgress(spider.Status)

	var ascan struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/JSON/ascan/view/status/", nil, &ascan); err != nil {
		return st, err
	}
	st.ActiveScanProgress = coerceProgress(ascan.Status)

	var alerts struct {
		NumberOfAlerts string `json:"numberOfAlerts"`
	}
	if err := c.get(ctx, "/JSON/alert/view/numberOfAlerts/", nil, &alerts); err != nil {
		return st, err
	}
	st.AlertCount = coerceProgress(alerts.NumberOfAlerts)

	st.InProgress = st.SpiderProgress < 100 || st.ActiveScanProgress < 100
	return st, nil
}

// Alerts lists the engine's alerts for the given base URL; empty base
// lists everything.
func (c *Client) Alerts(ctx context.Context, base string) ([]Alert, error) {
	q := url.Values{}
	if base != "" {
		q.Set("baseurl", base)
	}
	var out struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := c.get(ctx, "/JSON/core/view/alerts/", q, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}

// StartSpider kicks off the engine's spider against the target and
// returns the engine-assigned scan id.
func (c *Client) StartSpider(ctx context.Context, target string) (string, error) {
	q := url.Values{}
	q.Set("url", target)
	var out struct {
		Scan string `json:"scan"`
	}
	if err := c.get(ctx, "/JSON/spider/action/scan/", q, &out); err != nil {
		return "", err
	}
	return out.Scan, nil
}

// StartActiveScan kicks off the active scanner against the target and
// returns the engine-assigned scan id.
func (c *Client) StartActiveScan(ctx context.Context, target string) (string, error) {
	q := url.Values{}
	q.Set("url", target)
	var out struct {
		Scan string `json:"scan"`
	}
	if err := c.get(ctx, "/JSON/ascan/action/scan/", q, &out); err != nil {
		return "", err
	}
	return out.Scan, nil
}

// GenerateReport asks the engine to render its report in the given format
// (html, json, xml, md) and returns the raw bytes.
func (c *Client) GenerateReport(ctx context.Context, format string) ([]byte, error) {
	path := "/OTHER/core/other/htmlreport/"
	switch strings.ToLower(format) {
	case "json":
		path = "/OTHER/core/other/jsonreport/"
	case "xml":
		path = "/OTHER/core/other/xmlreport/"
	case "md":
		path = "/OTHER/core/other/mdreport/"
	}
	return c.raw(ctx, path)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, into any) error {
	b, err := c.rawQuery(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, into); err != nil {
		return &errs.PollError{Endpoint: c.baseURL, Err: fmt.Errorf("malformed response from %s: %w", path, err)}
	}
	return nil
}

func (c *Client) raw(ctx context.Context, path string) ([]byte, error) {
	return c.rawQuery(ctx, path, nil)
}

func (c *Client) rawQuery(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-ZAP-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.PollError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.PollError{Endpoint: c.baseURL, Err: fmt.Errorf("HTTP %d from %s", resp.StatusCode, path)}
	}
	return io.ReadAll(resp.Body)
}

// coerceProgress parses a progress or count value, treating anything
// non-numeric as 0.
func coerceProgress(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
