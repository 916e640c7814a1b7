// Package client is a typed HTTP client for the heliokv API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	v1 "github.com/ASHISH26940/heliokv/api/v1"
)

// APIError surfaces responses outside the operation's expected status codes.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client talks to one heliokv server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient gets a 10s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Create inserts key. A conflict result carries the entry already stored.
func (c *Client) Create(ctx context.Context, key, timestamp int64, data []byte) (v1.Result, error) {
	return c.kv(ctx, http.MethodPost, key, v1.CreateRequest{Timestamp: timestamp, Data: data})
}

// Read fetches key.
func (c *Client) Read(ctx context.Context, key int64) (v1.Result, error) {
	return c.kv(ctx, http.MethodGet, key, nil)
}

// Update replaces key if version is current. A conflict result carries the
// current version.
func (c *Client) Update(ctx context.Context, key, version, timestamp int64, data []byte) (v1.Result, error) {
	return c.kv(ctx, http.MethodPut, key, v1.UpdateRequest{Version: version, Timestamp: timestamp, Data: data})
}

// Delete removes key. An ok result carries the removed version.
func (c *Client) Delete(ctx context.Context, key int64) (v1.Result, error) {
	return c.kv(ctx, http.MethodDelete, key, nil)
}

// Greet calls the greeting endpoint. An empty name gets the server's default.
func (c *Client) Greet(ctx context.Context, name string) (string, error) {
	path := "/greet"
	if name != "" {
		path += "/" + url.PathEscape(name)
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}
	var out v1.GreetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode greeting: %w", err)
	}
	return out.Message, nil
}

func (c *Client) kv(ctx context.Context, method string, key int64, body interface{}) (v1.Result, error) {
	resp, err := c.send(ctx, method, "/kv/"+strconv.FormatInt(key, 10), body)
	if err != nil {
		return v1.Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNotFound, http.StatusConflict:
	default:
		return v1.Result{}, newAPIError(resp)
	}
	var res v1.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return v1.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func newAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
}
