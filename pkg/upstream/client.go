package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/civicdata/lexcache/pkg/log"
	"github.com/civicdata/lexcache/pkg/metrics"
)

// DefaultRatePerSec is the proactive throttle applied to upstream calls.
// The records API publishes no rate limit; one request per second keeps
// bulk indexing jobs polite.
const DefaultRatePerSec = 1.0

// ClientConfig configures the upstream HTTP client.
type ClientConfig struct {
	BaseURL string
	// APIKey, when set, is sent as a bearer token. The public records API
	// works without one at a lower rate tier.
	APIKey     string
	RatePerSec float64
	Timeout    time.Duration
}

// Client is the HTTP implementation of Source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates an upstream client with proactive rate limiting.
func NewClient(cfg ClientConfig) *Client {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = DefaultRatePerSec
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		log:        log.WithComponent("upstream"),
	}
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected status %d", e.Path, e.Status)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	timer := metrics.NewTimer()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()
	timer.ObserveDuration(metrics.UpstreamRequestDuration.WithLabelValues(path))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Path: path, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// FetchMemberList fetches one page of the full member list.
func (c *Client) FetchMemberList(ctx context.Context, page, limit int, filter string) (*MemberListPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if filter != "" {
		params.Set("filter", filter)
	}
	var out MemberListPage
	if err := c.get(ctx, "/members", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMemberDirectory fetches the unpaginated member directory.
func (c *Client) FetchMemberDirectory(ctx context.Context) ([]DirectoryRow, error) {
	var out struct {
		Rows []DirectoryRow `json:"rows"`
	}
	if err := c.get(ctx, "/members/directory", nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// FetchCommitteeList fetches one page of the committee list.
func (c *Client) FetchCommitteeList(ctx context.Context, page, limit int) (*CommitteeListPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	var out CommitteeListPage
	if err := c.get(ctx, "/committees", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBillSearch fetches one page of bill search results.
func (c *Client) FetchBillSearch(ctx context.Context, q BillQuery) (*BillPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("congress", strconv.Itoa(q.Congress))
	if q.AuthorID != "" {
		params.Set("author", q.AuthorID)
		params.Set("author_type", q.AuthorType)
	}
	if q.CommitteeID != "" {
		params.Set("committee", q.CommitteeID)
	}
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	var out BillPage
	if err := c.get(ctx, "/bills/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBillByKey fetches a single bill. Returns nil when the upstream
// knows no such bill.
func (c *Client) FetchBillByKey(ctx context.Context, apiCongress int, docKey string) (*BillRow, error) {
	var out struct {
		Rows []BillRow `json:"rows"`
	}
	path := fmt.Sprintf("/bills/%d/%s", apiCongress, url.PathEscape(docKey))
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Rows) == 0 {
		return nil, nil
	}
	return &out.Rows[0], nil
}

// FetchCoAuthored fetches the documents a member co-authored, across all
// congresses.
func (c *Client) FetchCoAuthored(ctx context.Context, personID string) ([]BillRow, error) {
	var out struct {
		Rows []BillRow `json:"rows"`
	}
	path := "/members/" + url.PathEscape(personID) + "/coauthored"
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}
