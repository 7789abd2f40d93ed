// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "sync"

// Session is the server-side state of one connection. Handlers keep
// per-connection state in it and register cleanup that runs when the
// connection ends, however it ends.
type Session struct {
	// Peer identifies the connecting process.
	Peer Credentials

	mu      sync.Mutex
	values  map[any]any
	closers []func()
}

// Load returns the value stored under key, or nil.
func (s *Session) Load(key any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Store sets the value under key. A nil value deletes it.
func (s *Session) Store(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.values, key)
		return
	}
	s.values[key] = value
}

// OnClose registers fn to run when the session ends. Functions run in
// reverse registration order.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

func (s *Session) close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
