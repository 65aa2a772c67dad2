// Package here provides a client for a HERE-style free-text geocoding API.
package here

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/storesync/internal/resilience"
)

// DefaultBaseURL is the HERE geocode endpoint.
const DefaultBaseURL = "https://geocode.search.hereapi.com/v1/geocode"

var (
	// ErrNoResult is returned when the provider answers with an empty item list.
	ErrNoResult = eris.New("here: no result")

	// ErrBadResponse is returned when the response body cannot be interpreted.
	ErrBadResponse = eris.New("here: bad response")
)

// Client resolves a free-text address query to a position.
type Client interface {
	Geocode(ctx context.Context, query string) (*Position, error)
}

// Position is the first result's coordinates.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Items []struct {
		Title    string    `json:"title"`
		Position *Position `json:"position"`
	} `json:"items"`
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the geocode endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps requests per second. Zero or negative disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p resilience.Policy) Option {
	return func(c *client) {
		c.retry = p
	}
}

type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.Policy
}

// NewClient creates a geocoding Client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		retry:      resilience.NoRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Notify == nil {
		c.retry.Notify = resilience.LogRetries("here")
	}
	return c
}

// Geocode resolves query and returns the first item's position.
func (c *client) Geocode(ctx context.Context, query string) (*Position, error) {
	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (*Position, error) {
		return c.geocodeOnce(ctx, query)
	})
}

func (c *client) geocodeOnce(ctx context.Context, query string) (*Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "here: rate limit")
	}

	params := url.Values{
		"apiKey": {c.apiKey},
		"q":      {query},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "here: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "here: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus("here", resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "here: read body")
	}

	var gr geocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrapf(ErrBadResponse, "parse response: %v", err)
	}

	if len(gr.Items) == 0 {
		return nil, eris.Wrapf(ErrNoResult, "query %q", query)
	}

	pos := gr.Items[0].Position
	if pos == nil {
		return nil, eris.Wrap(ErrBadResponse, "first item has no position")
	}
	return &Position{Lat: pos.Lat, Lng: pos.Lng}, nil
}
