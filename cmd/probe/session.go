package main

import (
	"context"
	"sync"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/errors"
	"github.com/wippyai/sheet-probe/probe"
)

// session owns the provider loaded by the TUI. Calls and close are
// serialized: close waits for a running call, whose result is released
// before the provider goes away, and calls after close are refused.
type session struct {
	c      sheetprobe.Classifier
	mu     sync.Mutex
	closed bool
}

// attach stores a freshly opened provider. A session that is already closed
// closes the provider at once and reports false.
func (s *session) attach(ctx context.Context, c sheetprobe.Classifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = c.Close(context.WithoutCancel(ctx))
		return false
	}
	s.c = c
	return true
}

// invoke runs probe.Invoke against the session's provider.
func (s *session) invoke(ctx context.Context, path string, handle func(text string) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.c == nil {
		return false, errors.NotInitialized(errors.PhaseCall, "provider")
	}
	return probe.Invoke(ctx, s.c, path, handle)
}

// close unloads the provider once no call is running. It is safe to call
// more than once.
func (s *session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.c == nil {
		return nil
	}
	return s.c.Close(context.WithoutCancel(ctx))
}
