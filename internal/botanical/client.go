// Package botanical is a thin client for the Trefle plant database. It
// normalizes upstream records into domain.SpeciesSummary.
package botanical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gardenkeep/pkg/domain"
)

const (
	// DefaultBaseURL is the public Trefle API root.
	DefaultBaseURL = "https://trefle.io/api/v1"
	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 15 * time.Second
	// PageSize is the fixed number of records Trefle returns per page.
	PageSize = 20
	// TokenSetting names the credential in configuration errors.
	TokenSetting = "BOTANICAL_API_TOKEN"

	maxPages     = 5
	maxErrorBody = 512
)

// UpstreamError reports a non-2xx response from Trefle.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("trefle api error: %d %s - %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Client calls the Trefle API. It makes a single attempt per page and keeps
// no cache.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient builds a client. An empty token is accepted here and reported as
// a *domain.ConfigError on first use.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool { return c.token != "" }

func (c *Client) requireToken() error {
	if !c.Configured() {
		return &domain.ConfigError{Setting: TokenSetting}
	}
	return nil
}

// Search runs a species search. Offset and Limit are translated onto Trefle's
// fixed-size pages and the result is sliced to Limit. A free-text query uses
// the search endpoint; filters alone use the listing endpoint.
func (c *Client) Search(ctx context.Context, q domain.SpeciesQuery) ([]domain.SpeciesSummary, error) {
	if err := c.requireToken(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = PageSize
	}
	offset := max(q.Offset, 0)
	page := offset/PageSize + 1
	skip := offset % PageSize

	out := make([]domain.SpeciesSummary, 0, limit)
	for fetched := 0; fetched < maxPages && len(out) < limit; fetched++ {
		records, err := c.searchPage(ctx, q, page+fetched)
		if err != nil {
			return nil, err
		}
		for i, r := range records {
			if fetched == 0 && i < skip {
				continue
			}
			out = append(out, r.summary())
			if len(out) == limit {
				break
			}
		}
		if len(records) < PageSize {
			break
		}
	}
	return out, nil
}

func (c *Client) searchPage(ctx context.Context, q domain.SpeciesQuery, page int) ([]trefleRecord, error) {
	params := url.Values{}
	path := "/plants"
	if q.Query != "" {
		path = "/plants/search"
		params.Set("q", q.Query)
	}
	if q.ScientificName != "" {
		params.Set("filter[scientific_name]", q.ScientificName)
	}
	if q.CommonName != "" {
		params.Set("filter[common_name]", q.CommonName)
	}
	if q.Family != "" {
		params.Set("filter[family]", q.Family)
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	var resp struct {
		Data []trefleRecord `json:"data"`
	}
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetByID fetches one species. An upstream 404 wraps domain.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id string) (domain.SpeciesSummary, error) {
	if err := c.requireToken(); err != nil {
		return domain.SpeciesSummary{}, err
	}
	var resp struct {
		Data *trefleRecord `json:"data"`
	}
	err := c.get(ctx, "/plants/"+url.PathEscape(id), url.Values{}, &resp)
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
		return domain.SpeciesSummary{}, fmt.Errorf("%w: %w", domain.NotFoundError{Entity: domain.EntitySpecies, ID: id}, err)
	}
	if err != nil {
		return domain.SpeciesSummary{}, err
	}
	if resp.Data == nil {
		return domain.SpeciesSummary{}, domain.NotFoundError{Entity: domain.EntitySpecies, ID: id}
	}
	return resp.Data.summary(), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, into any) error {
	params.Set("token", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build trefle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trefle request failed: %w", redactToken(err, c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode trefle response: %w", err)
	}
	return nil
}

// redactToken keeps the credential out of url.Error messages.
func redactToken(err error, token string) error {
	var uerr *url.Error
	if token == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, token, "REDACTED"), Err: uerr.Err}
}
