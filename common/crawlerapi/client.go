package crawlerapi

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

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/config"
	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/rs/zerolog/log"
)

// Client talks to the crawler admin endpoints of the platform API.
type Client struct {
	http           *http.Client
	baseURL        string
	token          string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUnauthorizedHook registers fn to run when any endpoint other than the
// login endpoint answers 401.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the service configuration.
func NewFromConfig(cfg config.Config, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Api.Timeout}),
		WithToken(cfg.Api.Token),
	}
	return New(cfg.Api.BaseURL, append(base, opts...)...)
}

// envelope is the response shape shared by every crawler endpoint.
type envelope[T any] struct {
	Success    *bool               `json:"success"`
	Data       T                   `json:"data"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
	Pagination models.Pagination   `json:"pagination"`
	Stats      *models.ProxyStats  `json:"stats"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + common.CrawlerAPIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs one request and decodes the envelope. A nil body sends no
// payload; 204 and empty bodies decode to a zero envelope.
func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (envelope[T], error) {
	var env envelope[T]

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), bodyReader)
	if err != nil {
		return env, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return env, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Crawler API request")

	if resp.StatusCode == http.StatusUnauthorized && !isLoginPath(req.URL.Path) && c.onUnauthorized != nil {
		c.onUnauthorized()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errEnv envelope[json.RawMessage]
		if jsonErr := json.Unmarshal(respBody, &errEnv); jsonErr == nil {
			apiErr.Message = errEnv.Message
			apiErr.Fields = errEnv.Errors
		}
		return env, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return env, nil
	}

	if err := json.Unmarshal(respBody, &env); err != nil {
		return env, fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return env, &Error{StatusCode: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}

	return env, nil
}

func isLoginPath(path string) bool {
	return strings.HasSuffix(path, common.LoginPath)
}

// setIf adds key to q only when value is not empty.
func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func pageQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if perPage > 0 {
		q.Set("per_page", fmt.Sprint(perPage))
	}
	return q
}
