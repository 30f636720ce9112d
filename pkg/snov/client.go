// Package snov wraps the Snov.io domain-email API. Snov uses short-lived
// OAuth client-credential tokens, refreshed lazily on first use and after
// expiry.
package snov

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.snov.io/v1"

// Client looks up known email addresses for a domain.
type Client interface {
	DomainEmails(ctx context.Context, domain string, limit int) ([]Email, error)
}

// Email is a single discovered address with its verification status.
type Email struct {
	Address string `json:"email"`
	Status  string `json:"status"` // "valid", "unknown", ...
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
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Snov.io API client.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "snov: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "snov: request token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "snov: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("snov: token status %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "snov: unmarshal token")
	}
	if tok.AccessToken == "" {
		return "", eris.New("snov: empty access token")
	}

	c.accessToken = tok.AccessToken
	expires := tok.ExpiresIn
	if expires <= 0 {
		expires = 3600
	}
	// Refresh one minute early to avoid using a token at its expiry edge.
	c.tokenExpiry = time.Now().Add(time.Duration(expires-60) * time.Second)
	return c.accessToken, nil
}

func (c *httpClient) DomainEmails(ctx context.Context, domain string, limit int) ([]Email, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("access_token", token)
	q.Set("domain", domain)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/get-domain-emails-with-info?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "snov: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "snov: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "snov: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("snov: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Result struct {
			Emails []Email `json:"emails"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "snov: unmarshal response")
	}
	return out.Result.Emails, nil
}
