// Package backend is the credentialed HTTP client for the Code Turtle API.
//
// Each browser visitor gets its own Client so that the backend's session
// cookie is kept per visitor, the same way a browser tab keeps it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// Client talks to the backend with a per-instance cookie jar.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	base *url.URL
}

// New builds a client for baseURL. No request timeout is set; callers bound calls with their context.
func New(baseURL string) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		BaseURL:    base.String(),
		HTTPClient: &http.Client{Jar: jar},
		base:       base,
	}, nil
}

// Auth returns the authentication call group.
func (c *Client) Auth() *AuthCalls { return &AuthCalls{c: c} }

// Payments returns the payment call group.
func (c *Client) Payments() *PaymentCalls { return &PaymentCalls{c: c} }

// Cookies returns the cookies the backend has set for this client.
func (c *Client) Cookies() []*http.Cookie {
	if c.HTTPClient.Jar == nil {
		return nil
	}
	return c.HTTPClient.Jar.Cookies(c.base)
}

// SetCookies restores previously exported backend cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.HTTPClient.Jar == nil || len(cookies) == 0 {
		return
	}
	c.HTTPClient.Jar.SetCookies(c.base, cookies)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
