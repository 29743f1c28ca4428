// Package testutil holds shared test fixtures.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/stream"
)

// RunPath is the path the fake backend serves runs on.
const RunPath = "/api/hedge-fund/run"

// FrameWriter writes flushed SSE frames to one response.
type FrameWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// Send encodes and flushes one event.
func (fw *FrameWriter) Send(eventType string, data any) error {
	frame, err := stream.EncodeFrame(eventType, data)
	if err != nil {
		return err
	}
	return fw.Raw(frame)
}

// Raw writes s verbatim and flushes.
func (fw *FrameWriter) Raw(s string) error {
	if _, err := fmt.Fprint(fw.w, s); err != nil {
		return err
	}
	fw.f.Flush()
	return nil
}

// Hijack drops the connection without terminating the response.
func (fw *FrameWriter) Hijack() {
	hj, ok := fw.w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

// Script produces the response for one run request. ctx is cancelled when
// the client goes away or the test ends.
type Script func(ctx context.Context, fw *FrameWriter, req domain.RunRequest)

// Backend is a scripted stand-in for the hedge-fund backend.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []domain.RunRequest
	headers  []http.Header
	closing  chan struct{}
}

// NewBackend starts a backend that answers every run with script.
func NewBackend(t testing.TB, script Script) *Backend {
	t.Helper()

	b := &Backend{closing: make(chan struct{})}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RunPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req domain.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		b.headers = append(b.headers, r.Header.Clone())
		b.mu.Unlock()

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-b.closing:
				cancel()
			case <-ctx.Done():
			}
		}()
		script(ctx, &FrameWriter{w: w, f: flusher}, req)
	}))

	t.Cleanup(b.Server.Close)
	t.Cleanup(func() { close(b.closing) })
	return b
}

// Requests returns the run requests received so far.
func (b *Backend) Requests() []domain.RunRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.RunRequest(nil), b.requests...)
}

// Headers returns the headers of the requests received so far.
func (b *Backend) Headers() []http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]http.Header(nil), b.headers...)
}

// NewFailingBackend starts a backend that rejects every request with status.
func NewFailingBackend(t testing.TB, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, status)
	}))
	t.Cleanup(srv.Close)
	return srv
}
