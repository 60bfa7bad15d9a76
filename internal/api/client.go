// Package api is the HTTP client for the ranking REST API.
package api

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

	"ranking-service/internal/ranking"
)

// TokenHeader carries the editor access token on privileged calls.
const TokenHeader = "x-access-token"

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
}

func (e *StatusError) StatusCode() int { return e.Status }

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:3333". A zero
// timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient swaps the underlying http.Client, e.g. for httptest.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/")
}

func (c *Client) List(ctx context.Context, namespace string) ([]ranking.Item, error) {
	var items []ranking.Item
	if err := c.do(ctx, "list", http.MethodGet, c.path(namespace), "", nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []ranking.Item{}
	}
	return items, nil
}

func (c *Client) Create(ctx context.Context, namespace string, f ranking.Fields) (ranking.Created, error) {
	var out ranking.Created
	err := c.do(ctx, "create", http.MethodPost, c.path(namespace), "", f, &out)
	return out, err
}

func (c *Client) Vote(ctx context.Context, namespace, id string) error {
	return c.do(ctx, "vote", http.MethodPut, c.path(namespace, id, "vote"), "", nil, nil)
}

type updateRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
}

func (c *Client) Update(ctx context.Context, namespace, token string, item ranking.Item) error {
	body := updateRequest{ID: item.ID, Name: item.Name, Artist: item.Artist}
	return c.do(ctx, "update", http.MethodPut, c.path(namespace, item.ID), token, body, nil)
}

func (c *Client) Delete(ctx context.Context, namespace, token, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, c.path(namespace, id), token, nil, nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.do(ctx, "login", http.MethodPost, c.path("login"), "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) do(ctx context.Context, op, method, target, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// readErrorMessage pulls {"error": "..."} or {"message": "..."} out of an
// error body, falling back to the raw text.
func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(b))
}

var (
	_ ranking.Remote        = (*Client)(nil)
	_ ranking.Authenticator = (*Client)(nil)
)
