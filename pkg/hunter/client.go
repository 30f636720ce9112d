// Package hunter wraps the Hunter.io domain-search and email-verifier APIs.
package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.hunter.io/v2"

// Client performs email discovery and verification against Hunter.io.
type Client interface {
	DomainSearch(ctx context.Context, req DomainSearchRequest) (*DomainSearchResponse, error)
	VerifyEmail(ctx context.Context, email string) (*VerifyResponse, error)
}

// DomainSearchRequest is the input for GET /domain-search.
type DomainSearchRequest struct {
	Domain    string
	FirstName string
	LastName  string
	Limit     int
}

// Email is a single discovered address.
type Email struct {
	Value      string `json:"value"`
	Confidence int    `json:"confidence_score"`
	Type       string `json:"type"`
}

// DomainSearchResponse is the decoded payload of GET /domain-search.
type DomainSearchResponse struct {
	Data struct {
		Domain string  `json:"domain"`
		Emails []Email `json:"emails"`
	} `json:"data"`
}

// VerifyResponse is the decoded payload of GET /email-verifier.
type VerifyResponse struct {
	Data struct {
		Result string `json:"result"`
		Score  int    `json:"score"`
	} `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Hunter.io API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainSearch(ctx context.Context, req DomainSearchRequest) (*DomainSearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("domain", req.Domain)
	q.Set("api_key", c.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	if req.FirstName != "" && req.LastName != "" {
		q.Set("first_name", req.FirstName)
		q.Set("last_name", req.LastName)
	}

	var out DomainSearchResponse
	if err := c.get(ctx, "/domain-search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*VerifyResponse, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", c.apiKey)

	var out VerifyResponse
	if err := c.get(ctx, "/email-verifier", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "hunter: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "hunter: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "hunter: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("hunter: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "hunter: unmarshal response")
	}
	return nil
}
