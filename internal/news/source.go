// Package news fetches job and vacancy news from a search source, normalizes it
// and stores new items idempotently.
package news

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
)

// ErrSource is returned when the search source is unreachable or answers with
// an unusable response.
var ErrSource = errors.New("news source failure")

// SearchItem is one raw search result.
type SearchItem struct {
	Title        string  `json:"title"`
	HTMLTitle    string  `json:"htmlTitle"`
	Snippet      string  `json:"snippet"`
	HTMLSnippet  string  `json:"htmlSnippet"`
	Link         string  `json:"link"`
	FormattedURL string  `json:"formattedUrl"`
	Pagemap      Pagemap `json:"pagemap"`
}

// Pagemap holds structured data extracted from the result page.
type Pagemap struct {
	Metatags []map[string]any `json:"metatags"`
}

// Source searches for news items.
type Source interface {
	Search(ctx context.Context, query string, count int) ([]SearchItem, error)
}

// DefaultGoogleBaseURL is the Google Custom Search JSON API endpoint.
const DefaultGoogleBaseURL = "https://www.googleapis.com/customsearch/v1"

// GoogleConfig configures the Custom Search client.
type GoogleConfig struct {
	APIKey   string
	EngineID string
	BaseURL  string
	Timeout  time.Duration
}

// GoogleClient queries the Google Custom Search JSON API.
type GoogleClient struct {
	apiKey   string
	engineID string
	baseURL  string
	client   *http.Client
}

var _ Source = (*GoogleClient)(nil)

// NewGoogleClient creates a client. An empty BaseURL selects the public endpoint.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleClient{
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewSource returns a Google client, or nil when the credentials are incomplete.
// A nil Source soft-disables ingestion.
func NewSource(cfg GoogleConfig) Source {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil
	}
	return NewGoogleClient(cfg)
}

type searchResponse struct {
	Items []SearchItem `json:"items"`
}

// Search runs one query and returns up to count results.
func (c *GoogleClient) Search(ctx context.Context, query string, count int) ([]SearchItem, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrSource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrSource, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSource, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrSource, err)
	}
	return out.Items, nil
}

// redactKey strips the API key from transport errors, which quote the request URL.
func redactKey(err error, key string) error {
	escaped := url.QueryEscape(key)
	if key == "" || !strings.Contains(err.Error(), escaped) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), escaped, "REDACTED"))
}
