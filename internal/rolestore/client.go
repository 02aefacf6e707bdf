package rolestore

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

	"github.com/facebookincubator/go-belt/tool/logger"
	"golang.org/x/net/http2"
)

// DefaultTimeout bounds every store request.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoCredential is returned before any request when no bearer token is configured.
	ErrNoCredential = errors.New("role store credential not configured")
	// ErrUnauthorized is returned when the store rejects the bearer token.
	ErrUnauthorized = errors.New("role store rejected credential")
)

// StatusError is a non-2xx reply from the store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("role store returned status %d", e.Code)
	}
	return fmt.Sprintf("role store returned status %d: %s", e.Code, e.Body)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL includes any path prefix, e.g. http://localhost:3001/api.
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a Session/Role Store client. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client. https stores are spoken to over HTTP/2 when the
// server offers it.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid role store url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid role store url %q: scheme must be http or https", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if base.Scheme == "https" {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable http2: %w", err)
		}
	}

	return &Client{
		baseURL: base.String(),
		token:   strings.TrimSpace(opts.Token),
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// LinkScreen upserts a screen record with its geometry.
func (c *Client) LinkScreen(ctx context.Context, req LinkRequest) error {
	if req.Role != "" {
		if _, err := ParseRole(string(req.Role)); err != nil {
			return err
		}
	}
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/screens/link", req, &resp); err != nil {
		return fmt.Errorf("link screen %d: %w", req.ScreenID, err)
	}
	return nil
}

// AssignRole upserts the role of one screen. Invalid roles are rejected
// without contacting the store.
func (c *Client) AssignRole(ctx context.Context, req RoleRequest) (*ScreenRoleAssignment, error) {
	if _, err := ParseRole(string(req.Role)); err != nil {
		return nil, err
	}
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/screens/role", req, &resp); err != nil {
		return nil, fmt.Errorf("assign role to screen %d: %w", req.ScreenID, err)
	}
	return resp.Screen, nil
}

// RolesForSession lists the screen records of one device session.
func (c *Client) RolesForSession(ctx context.Context, deviceID, sessionID string) ([]ScreenRoleAssignment, error) {
	path := "/screens/device/" + url.PathEscape(deviceID) + "/session/" + url.PathEscape(sessionID)
	var out []ScreenRoleAssignment
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get roles for session: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.token == "" {
		return ErrNoCredential
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debugf(ctx, "role store %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Body: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
