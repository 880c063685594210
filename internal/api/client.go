package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/pipeline"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

// Client represents a client for the Santa Teresa gateway API
type Client struct {
	pipeline *pipeline.Pipeline
	retry    pipeline.RetryPolicy
	logger   zerolog.Logger
}

var _ session.Authority = (*Client)(nil)

// New creates a client over an existing pipeline
func New(p *pipeline.Pipeline, log zerolog.Logger) *Client {
	return &Client{
		pipeline: p,
		retry:    pipeline.DefaultRetryPolicy,
		logger:   log,
	}
}

// NewHTTP creates a client with the standard middleware chain: bearer token
// from tokens, a request ID and request logging.
func NewHTTP(baseURL string, timeout time.Duration, tokens pipeline.TokenSource, log zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: timeout}
	p := pipeline.New(baseURL, httpClient,
		pipeline.RequestID(),
		pipeline.BearerToken(tokens),
		pipeline.Logging(log),
	)
	return New(p, log)
}

// SetRetryPolicy replaces the retry policy used for reads
func (c *Client) SetRetryPolicy(policy pipeline.RetryPolicy) {
	c.retry = policy
}

// BaseURL returns the gateway this client talks to
func (c *Client) BaseURL() string {
	return c.pipeline.BaseURL()
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token       string        `json:"token"`
	User        *session.User `json:"user"`
	Permissions []string      `json:"permissions"`
}

// MeResponse is the current user with their permission snapshot
type MeResponse struct {
	User        *session.User `json:"user"`
	Permissions []string      `json:"permissions"`
}

// PermissionsResponse is the authority endpoint's payload
type PermissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// Store represents a store the user may operate on
type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// StoresResponse lists the user's stores
type StoresResponse struct {
	Stores []Store `json:"stores"`
}

// Login authenticates the user and returns the bearer token with the user
// snapshot. Login is never retried.
func (c *Client) Login(ctx context.Context, email, password string) (string, *session.User, session.PermissionSet, error) {
	var resp LoginResponse
	err := c.pipeline.Do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", nil, nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return "", nil, nil, fmt.Errorf("login response is missing token or user")
	}
	return resp.Token, resp.User, session.NewPermissionSet(resp.Permissions...), nil
}

// Me returns the user the current token belongs to
func (c *Client) Me(ctx context.Context) (*session.User, session.PermissionSet, error) {
	var resp MeResponse
	if err := c.get(ctx, "/auth/me", &resp); err != nil {
		return nil, nil, err
	}
	if resp.User == nil {
		return nil, nil, fmt.Errorf("me response is missing user")
	}
	return resp.User, session.NewPermissionSet(resp.Permissions...), nil
}

// Permissions fetches a fresh permission snapshot
func (c *Client) Permissions(ctx context.Context) (session.PermissionSet, error) {
	var resp PermissionsResponse
	if err := c.get(ctx, "/auth/permissions", &resp); err != nil {
		return nil, err
	}
	return session.NewPermissionSet(resp.Permissions...), nil
}

// Stores returns the stores the user may operate on
func (c *Client) Stores(ctx context.Context) ([]Store, error) {
	var resp StoresResponse
	if err := c.get(ctx, "/stores", &resp); err != nil {
		return nil, err
	}
	return resp.Stores, nil
}

// StoreResource fetches a store-scoped resource as raw JSON
func (c *Client) StoreResource(ctx context.Context, storeID, resource string) (json.RawMessage, error) {
	path := fmt.Sprintf("/stores/%s/%s", url.PathEscape(storeID), url.PathEscape(resource))

	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return pipeline.Retry(ctx, c.retry, c.logger, func(ctx context.Context) error {
		return c.pipeline.Do(ctx, http.MethodGet, path, nil, out)
	})
}
