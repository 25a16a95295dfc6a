// Package trackerclient talks to the ticket triage API over HTTP and
// implements the triage.Tracker and triage.Authenticator ports.
package trackerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/credentials"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

const errorBodyLimit int64 = 4096

// RetryConfig controls retries of idempotent requests.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var defaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// Client is the HTTP implementation of the tracker port.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	store      credentials.Store
	retry      RetryConfig
	logger     *zap.Logger
	now        func() time.Time
}

var (
	_ triage.Tracker       = (*Client)(nil)
	_ triage.Authenticator = (*Client)(nil)
)

// Option mutates Client behavior.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRetry overrides the retry policy. Zero fields keep their defaults.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		if cfg.MaxAttempts > 0 {
			c.retry.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.InitialBackoff > 0 {
			c.retry.InitialBackoff = cfg.InitialBackoff
		}
		if cfg.MaxBackoff > 0 {
			c.retry.MaxBackoff = cfg.MaxBackoff
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a client for the API rooted at baseURL (e.g.
// "http://localhost:8080/api/").
func New(baseURL string, store credentials.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if store == nil {
		store = credentials.NewMemoryStore()
	}
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		retry:      defaultRetry,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Login exchanges a username and password for a credential and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (triage.Credential, error) {
	const op = "login"
	if strings.TrimSpace(username) == "" || password == "" {
		return triage.Credential{}, triage.NewError(triage.KindValidation, op, "username and password are required", nil)
	}
	var resp struct {
		Auth dto.AuthResponse `json:"auth"`
	}
	payload := dto.LoginRequest{Username: username, Password: password}
	if err := c.call(ctx, op, http.MethodPost, "auth/login", payload, false, &resp); err != nil {
		return triage.Credential{}, err
	}
	cred := triage.Credential{Token: resp.Auth.Token, ExpiresAt: resp.Auth.ExpiresAt}
	if cred.Token == "" {
		return triage.Credential{}, triage.NewError(triage.KindNetwork, op, "response carried no token", nil)
	}
	if err := c.store.Save(cred); err != nil {
		return triage.Credential{}, fmt.Errorf("%s: %w", op, err)
	}
	return cred, nil
}

// Logout forgets the stored credential.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// Me returns the user the stored credential belongs to.
func (c *Client) Me(ctx context.Context) (dto.UserResponse, error) {
	var user dto.UserResponse
	err := c.call(ctx, "whoami", http.MethodGet, "auth/me", nil, true, &user)
	return user, err
}

func (c *Client) ListTickets(ctx context.Context) ([]triage.TicketRecord, error) {
	const op = "list tickets"
	var wire []dto.TicketResponse
	if err := c.call(ctx, op, http.MethodGet, "tickets", nil, true, &wire); err != nil {
		return nil, err
	}
	out := make([]triage.TicketRecord, 0, len(wire))
	for i := range wire {
		rec, err := toRecord(wire[i])
		if err != nil {
			return nil, triage.NewError(triage.KindNetwork, op, "malformed response", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (triage.TicketRecord, error) {
	const op = "get ticket"
	var wire dto.TicketResponse
	if err := c.call(ctx, op, http.MethodGet, ticketPath(id), nil, true, &wire); err != nil {
		return triage.TicketRecord{}, err
	}
	return c.record(op, wire)
}

func (c *Client) SetTicketStatus(ctx context.Context, id, status string) (triage.TicketRecord, error) {
	const op = "change status"
	var wire dto.TicketResponse
	payload := dto.UpdateTicketRequest{Status: &status}
	if err := c.call(ctx, op, http.MethodPatch, ticketPath(id), payload, true, &wire); err != nil {
		return triage.TicketRecord{}, err
	}
	return c.record(op, wire)
}

func (c *Client) AddComment(ctx context.Context, ticketID, body string) (triage.Comment, error) {
	const op = "add comment"
	var wire dto.CommentResponse
	payload := dto.CreateCommentRequest{Body: body}
	if err := c.call(ctx, op, http.MethodPost, ticketPath(ticketID)+"/comments", payload, true, &wire); err != nil {
		return triage.Comment{}, err
	}
	return toComment(wire), nil
}

// ListProjects returns every project the backend knows about.
func (c *Client) ListProjects(ctx context.Context) ([]dto.ProjectResponse, error) {
	var projects []dto.ProjectResponse
	if err := c.call(ctx, "list projects", http.MethodGet, "projects", nil, true, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) record(op string, wire dto.TicketResponse) (triage.TicketRecord, error) {
	rec, err := toRecord(wire)
	if err != nil {
		return triage.TicketRecord{}, triage.NewError(triage.KindNetwork, op, "malformed response", err)
	}
	return rec, nil
}

func ticketPath(id string) string {
	return "tickets/" + url.PathEscape(id)
}

// call performs one API request and decodes the {"data": ...} envelope into
// out. Only GET requests are retried.
func (c *Client) call(ctx context.Context, op, method, path string, payload any, authed bool, out any) error {
	var token string
	if authed {
		cred, err := c.credential(op)
		if err != nil {
			return err
		}
		token = cred.Token
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	target := c.base.ResolveReference(&url.URL{Path: path})
	attempts := 1
	if method == http.MethodGet {
		attempts = c.retry.MaxAttempts
	}

	var resp *http.Response
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%s: build request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err = c.httpClient.Do(req)
		retryable := (err != nil && shouldRetryError(err)) || (err == nil && shouldRetryStatus(resp.StatusCode))
		if !retryable || attempt >= attempts {
			if err != nil {
				return triage.NewError(triage.KindNetwork, op, "", err)
			}
			break
		}
		if resp != nil {
			drainAndClose(resp.Body)
		}
		c.logger.Debug("retrying request",
			zap.String("method", method),
			zap.String("url", target.Redacted()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := sleepWithContext(ctx, c.backoff(attempt)); err != nil {
			return triage.NewError(triage.KindNetwork, op, "", err)
		}
	}
	defer resp.Body.Close()

	c.logger.Debug("tracker request",
		zap.String("method", method),
		zap.String("url", target.Redacted()),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		drainAndClose(resp.Body)
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return triage.NewError(triage.KindNetwork, op, "malformed response", err)
	}
	if len(envelope.Data) == 0 {
		return triage.NewError(triage.KindNetwork, op, "response carried no data", nil)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return triage.NewError(triage.KindNetwork, op, "malformed response", err)
	}
	return nil
}

// credential loads the stored credential and rejects it locally when it is
// known to be expired. Tokens saved without an expiry are inspected for an
// "exp" claim.
func (c *Client) credential(op string) (triage.Credential, error) {
	cred, err := c.store.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredential) {
			return triage.Credential{}, triage.NewError(triage.KindAuth, op, "not logged in", nil)
		}
		return triage.Credential{}, triage.NewError(triage.KindAuth, op, "credential unreadable", err)
	}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = tokenExpiry(cred.Token)
	}
	if cred.Expired(c.now()) {
		return triage.Credential{}, triage.NewError(triage.KindAuth, op, "session expired", nil)
	}
	return cred, nil
}

func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.retry.MaxBackoff {
			return c.retry.MaxBackoff
		}
	}
	return backoff
}

func shouldRetryError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func shouldRetryStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, errorBodyLimit))
	_ = body.Close()
}
