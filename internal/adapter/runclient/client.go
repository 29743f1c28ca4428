// Package runclient provides the HTTP client that starts a backend run and
// consumes its server-sent event stream.
package runclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// Handler receives each decoded event of a session, in arrival order.
type Handler func(domain.Event)

// TransportError reports a failure to open or read the run stream.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("run stream: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("run stream: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is an HTTP client for the backend's run endpoint.
type Client struct {
	httpClient *http.Client
	runURL     string
}

// NewClient creates a client posting runs to baseURL + runPath.
func NewClient(baseURL, runPath string) *Client {
	return &Client{
		// No Timeout: a run lasts as long as the backend streams, and callers
		// bound it by cancelling the session.
		httpClient: &http.Client{},
		runURL:     strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(runPath, "/"),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Start posts req and streams the response to onEvent from a new goroutine.
// It never blocks on the network; failures surface as a local error event.
// The returned session's Cancel is the run's cancel function.
func (c *Client) Start(ctx context.Context, req domain.RunRequest, onEvent Handler) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:     "sess_" + uuid.New().String()[:8],
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, c, onEvent)
	return s
}

func (c *Client) open(ctx context.Context, req domain.RunRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to start run: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("backend returned %q", strings.TrimSpace(string(bodyBytes))),
		}
	}
	return resp.Body, nil
}
