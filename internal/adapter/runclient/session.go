package runclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/stream"
)

const readBufferSize = 32 * 1024

// Session is one in-flight run stream. It owns the response body, the frame
// decoder and the cancelled flag; exactly one read loop runs per Session.
type Session struct {
	ID string

	req       domain.RunRequest
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	// deliverMu is held across the cancelled check and the handler call.
	deliverMu sync.Mutex

	mu  sync.Mutex
	err error
}

// Cancel aborts the stream and waits for a delivery in progress to return.
// No event is delivered once Cancel has returned, and the abort itself is not
// reported as a failure.
//
// Cancel must not be called from the event handler. A handler stops its own
// session by cancelling the context passed to Start.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
}

// Cancelled reports whether the session was cancelled, either through Cancel
// or through the parent context.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Done is closed when the read loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the transport failure that ended the session, if any. It is nil
// while running, after a clean end of stream and after cancellation.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Request returns the request the session was started with.
func (s *Session) Request() domain.RunRequest {
	return s.req
}

func (s *Session) run(ctx context.Context, c *Client, onEvent Handler) {
	defer close(s.done)
	defer s.cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("run stream handler panicked", "session_id", s.ID, "panic", r)
			s.setErr(fmt.Errorf("event handler panicked: %v", r))
		}
	}()

	body, err := c.open(ctx, s.req)
	if err != nil {
		s.fail(ctx, err, onEvent)
		return
	}
	defer body.Close()

	dec := stream.NewFrameDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, rerr := body.Read(buf)
		if s.stopped(ctx) {
			dec.Reset()
			return
		}
		if n > 0 && !s.dispatch(ctx, dec.Feed(buf[:n]), onEvent) {
			dec.Reset()
			return
		}
		if errors.Is(rerr, io.EOF) {
			s.dispatch(ctx, dec.Flush(), onEvent)
			slog.Debug("run stream ended", "session_id", s.ID)
			return
		}
		if rerr != nil {
			s.fail(ctx, &TransportError{Err: rerr}, onEvent)
			return
		}
	}
}

// dispatch parses and delivers frames; it returns false once cancelled.
func (s *Session) dispatch(ctx context.Context, frames []string, onEvent Handler) bool {
	for _, frame := range frames {
		ev, err := stream.Parse(frame)
		if err != nil {
			slog.Warn("dropping malformed frame", "session_id", s.ID, "error", err)
			continue
		}
		if !s.deliver(ctx, ev, onEvent) {
			return false
		}
	}
	return true
}

func (s *Session) deliver(ctx context.Context, ev domain.Event, onEvent Handler) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.stopped(ctx) {
		return false
	}
	onEvent(s.bind(ev))
	return true
}

// bind attaches the run's agent selection to the terminal events.
func (s *Session) bind(ev domain.Event) domain.Event {
	switch e := ev.(type) {
	case domain.CompleteEvent:
		e.SelectedAgents = slices.Clone(s.req.SelectedAgents)
		return e
	case domain.ErrorEvent:
		e.SelectedAgents = slices.Clone(s.req.SelectedAgents)
		return e
	}
	return ev
}

func (s *Session) fail(ctx context.Context, err error, onEvent Handler) {
	if s.stopped(ctx) {
		// Abort-induced failure.
		return
	}
	slog.Warn("run stream failed", "session_id", s.ID, "error", err)
	s.setErr(err)
	s.deliver(ctx, domain.ErrorEvent{Local: true}, onEvent)
}

func (s *Session) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.cancelled.Store(true)
	}
	return s.cancelled.Load()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
