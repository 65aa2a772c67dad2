// Package radar provides a client for the Radar geofences API.
package radar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the Radar geofences endpoint.
const DefaultBaseURL = "https://api.radar.io/v1/geofences"

// ShapeCircle is the only geofence shape this client creates.
const ShapeCircle = "circle"

// Client creates and deletes geofences.
type Client interface {
	CreateGeofence(ctx context.Context, g Geofence) error
	DeleteGeofence(ctx context.Context, tag, externalID string) error
}

// Geofence is the create request body.
type Geofence struct {
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
	Radius      int       `json:"radius"`
	Tag         string    `json:"tag"`
	ExternalID  string    `json:"externalId"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("radar: returned status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the geofences endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
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

type client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client authenticated with the secret key.
func NewClient(secretKey string, opts ...Option) Client {
	c := &client{
		secretKey:  secretKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateGeofence posts a new geofence.
func (c *client) CreateGeofence(ctx context.Context, g Geofence) error {
	payload, err := json.Marshal(g)
	if err != nil {
		return eris.Wrap(err, "radar: marshal geofence")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "radar: build create request")
	}
	return c.do(req, "create")
}

// DeleteGeofence deletes the geofence addressed by tag and external ID.
func (c *client) DeleteGeofence(ctx context.Context, tag, externalID string) error {
	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(tag), url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "radar: build delete request")
	}
	return c.do(req, "delete")
}

func (c *client) do(req *http.Request, op string) error {
	req.Header.Set("Authorization", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "radar: %s request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
