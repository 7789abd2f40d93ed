// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Target is a reference-counted forwarding sink, typically a
// connection to a log collector. The writer is closed when the last
// reference is released.
type Target struct {
	name   string
	writer io.WriteCloser
	refs   atomic.Int64

	// sending serializes Send so each write owns the write deadline.
	sending chan struct{}
}

// writeDeadliner is implemented by net.Conn.
type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// NewTarget wraps writer with one reference held by the caller.
func NewTarget(name string, writer io.WriteCloser) *Target {
	target := &Target{name: name, writer: writer, sending: make(chan struct{}, 1)}
	target.refs.Store(1)
	return target
}

// Acquire adds a reference and returns t.
func (t *Target) Acquire() *Target {
	t.refs.Add(1)
	return t
}

// Release drops a reference. The last release closes the writer and
// returns its error.
func (t *Target) Release() error {
	refs := t.refs.Add(-1)
	if refs < 0 {
		panic(fmt.Sprintf("logdev: target %s released too many times", t.name))
	}
	if refs == 0 {
		return t.writer.Close()
	}
	return nil
}

// Send writes p as one message. Sends on one target are serialized.
// When the writer supports write deadlines, the ctx deadline bounds
// the write and cancelling ctx aborts it with ctx's error; a writer
// without deadlines is only checked for cancellation before writing.
func (t *Target) Send(ctx context.Context, p []byte) (int, error) {
	select {
	case t.sending <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-t.sending }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadlined, ok := t.writer.(writeDeadliner)
	if !ok {
		return t.writer.Write(p)
	}

	deadline, _ := ctx.Deadline()
	deadlined.SetWriteDeadline(deadline)
	expired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		deadlined.SetWriteDeadline(time.Unix(1, 0))
		close(expired)
	})

	n, err := t.writer.Write(p)
	if !stop() {
		// The expiry ran or is running; let it finish before the next
		// send sets its own deadline.
		<-expired
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
	}
	return n, err
}

func (t *Target) String() string { return t.name }

// DialTarget connects to a collector and wraps the connection.
// network is a unix or tcp family name.
func DialTarget(ctx context.Context, network, address string) (*Target, error) {
	switch network {
	case "unix", "unixgram", "unixpacket", "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("%w: network %q", ErrInvalidArgument, network)
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dialing collector %s %s: %w", network, address, err)
	}
	return NewTarget(network+":"+address, conn), nil
}

// Slot holds the currently bound target. Readers take their own
// reference under the slot mutex, so a concurrent Swap can never
// close a target out from under an in-flight send.
type Slot struct {
	mu     sync.Mutex
	target *Target
}

// Acquire returns a referenced handle on the current target, or nil.
func (s *Slot) Acquire() *Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return nil
	}
	return s.target.Acquire()
}

// Swap installs target (which may be nil), taking over the caller's
// reference, and releases the slot's reference on the previous one.
// The error is from closing the previous target, if that release was
// its last.
func (s *Slot) Swap(target *Target) error {
	s.mu.Lock()
	previous := s.target
	s.target = target
	s.mu.Unlock()

	if previous == nil {
		return nil
	}
	if err := previous.Release(); err != nil {
		return fmt.Errorf("closing target %s: %w", previous, err)
	}
	return nil
}

// Clear releases the current target.
func (s *Slot) Clear() error { return s.Swap(nil) }
