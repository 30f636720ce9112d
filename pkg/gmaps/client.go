// Package gmaps wraps the hosted Google Maps scraping actor API.
package gmaps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.apify.com/v2"
	defaultActorID = "compass~crawler-google-places"
)

// Client runs a maps search against the scraping service.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]Place, error)
}

// SearchRequest describes one maps search run.
type SearchRequest struct {
	Query      string
	MaxResults int
	Location   string // optional explicit location override
}

// Place is a single scraped business as returned by the actor dataset.
type Place struct {
	Title             string   `json:"title"`
	CategoryName      string   `json:"categoryName"`
	Address           string   `json:"address"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	PostalCode        string   `json:"postalCode"`
	CountryCode       string   `json:"countryCode"`
	Phone             string   `json:"phone"`
	Website           string   `json:"website"`
	TotalScore        *float64 `json:"totalScore"`
	ReviewsCount      int      `json:"reviewsCount"`
	URL               string   `json:"url"`
	PlaceID           string   `json:"placeId"`
	ClaimThisBusiness bool     `json:"claimThisBusiness"`
	TemporarilyClosed bool     `json:"temporarilyClosed"`
	PriceLevel        string   `json:"price"`
}

// actorInput is the actor run configuration. Review/image payloads are
// disabled: the pipeline only needs listing attributes.
type actorInput struct {
	SearchStringsArray        []string `json:"searchStringsArray"`
	MaxCrawledPlacesPerSearch int      `json:"maxCrawledPlacesPerSearch"`
	Language                  string   `json:"language"`
	IncludeReviews            bool     `json:"includeReviews"`
	IncludeImages             bool     `json:"includeImages"`
	IncludeOpeningHours       bool     `json:"includeOpeningHours"`
	MaxReviews                int      `json:"maxReviews"`
	MaxImages                 int      `json:"maxImages"`
	LocationQuery             string   `json:"locationQuery,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithActorID overrides the default scraper actor.
func WithActorID(id string) Option {
	return func(c *httpClient) {
		c.actorID = id
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	token   string
	baseURL string
	actorID string
	http    *http.Client
}

// NewClient creates a maps scraper client. Actor runs are synchronous: the
// request blocks until the dataset is ready or the timeout elapses.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		actorID: defaultActorID,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]Place, error) {
	input := actorInput{
		SearchStringsArray:        []string{req.Query},
		MaxCrawledPlacesPerSearch: req.MaxResults,
		Language:                  "en",
		IncludeOpeningHours:       true,
		LocationQuery:             req.Location,
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "gmaps: marshal actor input")
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s",
		c.baseURL, url.PathEscape(c.actorID), url.QueryEscape(c.token))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gmaps: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gmaps: run actor")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gmaps: read response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, eris.Errorf("gmaps: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var places []Place
	if err := json.Unmarshal(respBody, &places); err != nil {
		return nil, eris.Wrap(err, "gmaps: unmarshal dataset items")
	}
	return places, nil
}
