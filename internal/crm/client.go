package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jdelaney/crm-mcp/internal/logger"
)

// rateLimitHeader carries the remote's remaining-quota hint.
const rateLimitHeader = "X-RateLimit-Remaining"

// Client is a rate-governed HTTP client for the CRM's JSON REST API. Every
// request waits out the governor's current delay before hitting the network
// and feeds the response's quota hint back into it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	systemName string
	gov        *Governor
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	SystemName string
	Timeout    time.Duration
	Governor   *Governor
}

// NewClient creates a Client. A nil Governor gets the default pacing policy.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	gov := opts.Governor
	if gov == nil {
		gov = NewGovernor(DefaultRateConfig())
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		systemName: opts.SystemName,
		gov:        gov,
	}
}

// Governor exposes the client's pacing state to the fetch layer.
func (c *Client) Governor() *Governor { return c.gov }

// Get performs a GET against path with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, params map[string]any) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (map[string]any, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]any, body any) (map[string]any, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		reqURL += "?" + q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("crm: encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-System", c.systemName)
	req.Header.Set("X-System-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.observeQuota(resp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.gov.Cooldown()
		logger.Warnf("remote refused %s %s, entering cooldown", method, path)
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, &ValidationError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if resp.StatusCode == http.StatusNoContent {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("crm: decode response: %w", err)
	}
	return decoded, nil
}

// waitTurn sleeps out the governor's current delay, honoring cancellation.
func (c *Client) waitTurn(ctx context.Context) error {
	delay := c.gov.NextDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) observeQuota(resp *http.Response) {
	if v := resp.Header.Get(rateLimitHeader); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			c.gov.Observe(remaining)
			if remaining < 10 {
				logger.Debugf("quota critical: %d requests remaining", remaining)
			}
		}
	}
}

// readDetail extracts a short error description from a response body.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload map[string]any
	if json.Unmarshal(b, &payload) == nil {
		for _, key := range []string{"errorMessage", "error", "message", "title"} {
			if msg, ok := payload[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return string(b)
}
