// Package invoicing talks to the invoicing REST API: it executes single calls
// described by the assistant and reads the reference data the assistant needs.
package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comigor/invoicebot-go/internal/logger"
)

// ErrUndecodableBody is returned when a successful response does not carry JSON.
var ErrUndecodableBody = errors.New("invoicing API returned a non-JSON body")

// Observer receives one notification per API call. status is 0 when the call
// never got a response.
type Observer interface {
	ObserveCall(method, endpoint string, status int, elapsed time.Duration)
}

// Request describes one call against the API.
type Request struct {
	Method   string
	Endpoint string
	// Data is sent as the request body exactly as given. Empty or null sends no body.
	Data json.RawMessage
}

// Client is a client for the invoicing API
type Client struct {
	opts       options
	httpClient *http.Client
}

// New creates a new Client
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}
	o.baseURL = strings.TrimRight(o.baseURL, "/")

	return &Client{opts: o, httpClient: hc}
}

// BaseURL returns the API root every endpoint is appended to.
func (c *Client) BaseURL() string {
	return c.opts.baseURL
}

// Execute performs req and converts the response into a Result.
// 200 and 201 yield the decoded body; any other status yields a failure Result.
// Only transport problems and undecodable success bodies are returned as errors.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	method := strings.ToUpper(req.Method)
	url := c.opts.baseURL + req.Endpoint

	var body io.Reader
	if hasBody(req.Data) {
		body = bytes.NewReader(req.Data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Result{}, fmt.Errorf("build request %s %s: %w", method, req.Endpoint, err)
	}
	for k, v := range c.opts.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(method, req.Endpoint, 0, start)
		return Result{}, fmt.Errorf("%s %s: %w", method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.observe(method, req.Endpoint, resp.StatusCode, start)
	if err != nil {
		return Result{}, fmt.Errorf("read response of %s %s: %w", method, req.Endpoint, err)
	}

	logger.L.Debug("invoicing call", "method", method, "endpoint", req.Endpoint, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return failure(resp.StatusCode), nil
	}
	if !json.Valid(raw) {
		return Result{}, fmt.Errorf("%s %s: %w", method, req.Endpoint, ErrUndecodableBody)
	}
	return Result{Status: resp.StatusCode, Body: raw}, nil
}

func (c *Client) observe(method, endpoint string, status int, start time.Time) {
	if c.opts.observer != nil {
		c.opts.observer.ObserveCall(method, endpoint, status, time.Since(start))
	}
}

func hasBody(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
