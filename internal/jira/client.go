// Package jira fetches single issues from Jira Cloud for tickets the local
// store has not imported yet.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
)

const errorBodyLimit = 4096

// ErrNotConfigured is returned when no Jira site or credentials are set.
var ErrNotConfigured = errors.New("jira: not configured")

// Error carries a non-2xx Jira response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jira: status %d", e.StatusCode)
	}
	return fmt.Sprintf("jira: status %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the upstream status from err, or 0.
func StatusCode(err error) int {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.StatusCode
	}
	return 0
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is a minimal Jira Cloud REST v3 client using email:token basic auth.
type Client struct {
	baseURL    *url.URL
	email      string
	token      string
	httpClient *http.Client
	misses     *cache.Cache
	logger     *zap.Logger
}

// NewClient builds a client from cfg. It returns ErrNotConfigured when cfg is
// incomplete.
func NewClient(cfg config.JiraConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("jira: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("jira: base URL must include scheme and host")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := time.Duration(cfg.NegativeCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}

	c := &Client{
		baseURL:    parsed,
		email:      cfg.Email,
		token:      cfg.PAT,
		httpClient: &http.Client{Timeout: timeout},
		misses:     cache.New(ttl, 2*ttl),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GetIssue fetches an issue by key or numeric id. A 404 is remembered for the
// negative cache TTL and answered locally until it expires.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("jira: issue key is required")
	}
	if cached, ok := c.misses.Get(key); ok {
		return nil, cached.(*Error)
	}

	endpoint := c.baseURL.JoinPath("rest", "api", "3", "issue", key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("jira: build request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira: get issue %s: %w", key, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("jira issue lookup", zap.String("key", key), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		apiErr := &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusNotFound {
			c.misses.SetDefault(key, apiErr)
		}
		return nil, apiErr
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("jira: decode issue %s: %w", key, err)
	}
	return &issue, nil
}

// BrowseURL returns the human-facing link for key on this site.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL.JoinPath("browse", key).String()
}
