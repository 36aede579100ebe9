package places

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/placesfinder/placesfinder/internal/telemetry"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	// DetailFields is the field mask used for enrichment lookups.
	DetailFields = "formatted_phone_number,website"

	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
	StatusNotFound    = "NOT_FOUND"

	maxBodyBytes = 8 << 20
)

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrMalformedResponse is returned when a 200 body is not valid JSON.
var ErrMalformedResponse = errors.New("places API returned malformed JSON")

// APIError is returned when the API answers 200 with a failure status.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places API status %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("places API status %s", e.Status)
}

// Client talks to the Places web API.
type Client struct {
	http    HTTPDoer
	baseURL string
	apiKey  string
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client. It has no effect
// after WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.http.(*http.Client); ok && timeout > 0 {
			hc.Timeout = timeout
		}
	}
}

// NewClient creates a client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: telemetry.InstrumentHTTPTransport(nil, "places"),
		},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIKey returns the key the client signs requests with.
func (c *Client) APIKey() string {
	return c.apiKey
}

// TextSearch issues one text-search call with the given parameters and
// returns the decoded page plus its raw body.
func (c *Client) TextSearch(ctx context.Context, params url.Values) (*TextSearchResponse, []byte, error) {
	body, err := c.get(ctx, "textsearch", params)
	if err != nil {
		return nil, nil, err
	}

	if err := checkStatus(body); err != nil {
		return nil, body, err
	}

	var resp TextSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to decode text search response: %w", err)
	}
	return &resp, body, nil
}

// Details looks up the given fields of one place. Any well-formed answer,
// whatever its status, yields a response; a non-OK status leaves Result empty.
func (c *Client) Details(ctx context.Context, placeID, fields string) (*DetailsResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", c.apiKey)
	if fields != "" {
		params.Set("fields", fields)
	}

	body, err := c.get(ctx, "details", params)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	if status := gjson.GetBytes(body, "status").String(); status != "" && status != StatusOK {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":     "details",
			"service":       "places",
			"place_id":      placeID,
			"status":        status,
			"error_message": gjson.GetBytes(body, "error_message").String(),
		}).Warn("Details lookup returned no result")
		return &DetailsResponse{
			Status:       status,
			ErrorMessage: gjson.GetBytes(body, "error_message").String(),
		}, nil
	}

	var resp DetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/json?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": endpoint,
		"service":   "places",
	}).Debug("Calling places API")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%s response too large: exceeds %d bytes", endpoint, maxBodyBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places API error: %s", resp.Status)
	}

	return body, nil
}

func checkStatus(body []byte) error {
	if !gjson.ValidBytes(body) {
		return ErrMalformedResponse
	}

	status := gjson.GetBytes(body, "status").String()
	switch status {
	case "", StatusOK, StatusZeroResults:
		return nil
	}

	return &APIError{
		Status:  status,
		Message: gjson.GetBytes(body, "error_message").String(),
	}
}
