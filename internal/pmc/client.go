// Package pmc is a rate-limited client for the NCBI E-utilities endpoints
// serving PubMed Central searches and full-text article fetches.
package pmc

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

	"golang.org/x/time/rate"

	"github.com/melhzy/litfetch/internal/record"
)

const (
	// BaseURL is the NCBI E-utilities base URL.
	BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout is the per-request HTTP timeout. A request that
	// exceeds it is a transient error and enters the retry policy.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is 3 requests per second, the NCBI guideline for
	// keyed access. The limiter is shared by search and fetch calls
	// because NCBI rate-limits per API key, not per connection.
	DefaultRateLimit = 3.0

	// database is the E-utilities database queried for full-text articles.
	database = "pmc"
)

// Client talks to the E-utilities search and fetch endpoints. All requests
// pass through one shared rate limiter.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the NCBI API key sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithLimiter substitutes the shared rate limiter. Tests inject a
// generous limiter; the default follows the NCBI guideline.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRateLimit sets the sustained request rate in requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates an E-utilities client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs one rate-limited GET against an E-utilities endpoint and
// returns the response body. Network failures and non-auth error statuses
// come back as ErrTransient so the caller's retry policy can handle them.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return "", fmt.Errorf("%w: %v", ErrAuth, &StatusError{StatusCode: resp.StatusCode})
	}
	if resp.StatusCode == http.StatusBadRequest {
		// NCBI reports an invalid api_key as HTTP 400. Only that shape
		// is a credential rejection; other bad requests stay transient.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if apiKeyRejected(body) {
			return "", fmt.Errorf("%w: %v", ErrAuth, &StatusError{StatusCode: resp.StatusCode})
		}
		return "", fmt.Errorf("%w: %v", ErrTransient, &StatusError{StatusCode: resp.StatusCode})
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %v", ErrTransient, &StatusError{StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrTransient, err)
	}
	return string(body), nil
}

// apiKeyRejected reports whether a 400 body carries the E-utilities
// invalid-API-key marker ("API key invalid" in the error text).
func apiKeyRejected(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "api key")
}

// Search queries PMC for articles matching term and returns up to
// maxResults identifiers plus the total match count the server reports.
// The total may exceed the returned list length; it is informational only.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]string, int, error) {
	params := url.Values{}
	params.Set("db", database)
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		if IsAuthError(err) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	var payload struct {
		Result struct {
			IDList []string `json:"idlist"`
			Count  string   `json:"count"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, 0, fmt.Errorf("%w: parsing search response: %v", ErrSearch, err)
	}

	total, err := strconv.Atoi(payload.Result.Count)
	if err != nil {
		total = len(payload.Result.IDList)
	}
	return payload.Result.IDList, total, nil
}

// Fetch retrieves one article's full text and builds the normalized
// record in the requested format. Classification of the response:
//
//   - <pmc-articleset> carrying an <error> element → ErrNotAvailable
//   - malformed XML → ErrParse
//   - network error, timeout, or non-200 status → ErrTransient
//
// includeText controls whether the json record carries the derived
// plain-text payload; xml and txt formats ignore it.
func (c *Client) Fetch(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error) {
	display := record.DisplayID(id)

	params := url.Values{}
	params.Set("db", database)
	// efetch expects the raw numeric ID, not the PMC-prefixed form.
	params.Set("id", record.NumericID(id))
	params.Set("rettype", "full")
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	if reason, unavailable := unavailableReason(body); unavailable {
		return nil, fmt.Errorf("%w: %s: %s", ErrNotAvailable, display, reason)
	}
	if _, wellFormed := rootElement(body); !wellFormed {
		return nil, fmt.Errorf("%w: %s", ErrParse, display)
	}

	rec := &record.Record{
		PMCID:        display,
		Source:       record.SourcePMC,
		DownloadDate: time.Now(),
		XML:          body,
	}
	switch format {
	case record.FormatJSON:
		rec.Metadata = ExtractMetadata(body)
		if includeText {
			rec.Text = StripTags(body)
		}
	case record.FormatText:
		rec.Text = StripTags(body)
	}
	return rec, nil
}
