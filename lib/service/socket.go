// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/klog/lib/codec"
	"github.com/bureau-foundation/klog/lib/netutil"
)

// ActionFunc processes one request for a specific action within a
// session. The raw parameter is the full CBOR request (including the
// "action" field); the handler decodes its own fields from it.
//
// Return a value to include in the success response, or an error for
// a failure response. A nil value produces {ok: true}. A non-nil value
// is marshaled as CBOR into the response's "data" field.
//
// ctx is cancelled when the peer hangs up or the server shuts down,
// so handlers that block must select on it.
type ActionFunc func(ctx context.Context, session *Session, raw []byte) (any, error)

// Response is the wire-format envelope for every response. Code
// classifies failures so clients can map them back to sentinel errors.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  string           `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves a session-oriented CBOR request-response
// protocol on a Unix socket. Each connection is one session: the
// client writes a CBOR request, the server answers with a CBOR
// response, and this repeats until either side closes. Requests within
// a session are handled in order.
//
// Actions are registered with Handle before calling Serve. Unknown
// actions receive an error response.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	codes      ErrorCodes
	mode       os.FileMode
	logger     *slog.Logger

	// activeConnections tracks sessions for graceful shutdown. Serve
	// waits for every session to finish before returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
// codes classifies handler errors into response codes.
func NewSocketServer(socketPath string, codes ErrorCodes, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		codes:      codes,
		mode:       0o660,
		logger:     logger,
	}
}

// SetMode sets the permission bits applied to the socket file.
// Default: 0660.
func (s *SocketServer) SetMode(mode os.FileMode) { s.mode = mode }

// Handle registers a handler for the given action name. Panics if the
// action is already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve starts accepting connections and runs one session per
// connection. Blocks until ctx is cancelled, then stops accepting,
// cancels every session, and waits for them to finish.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()
	if err := os.Chmod(s.socketPath, s.mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", s.socketPath, err)
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// writeTimeout is how long we wait for a response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. The largest request is
// an injected line of at most a few kilobytes.
const maxRequestSize = 64 * 1024

// request is one decoded request, or the error that ended the stream.
type request struct {
	raw codec.RawMessage
	err error
}

// handleConnection runs one session.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	session := &Session{values: make(map[any]any)}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		credentials, err := PeerCredentials(unixConn)
		if err != nil {
			s.logger.Warn("reading peer credentials failed", "error", err)
			s.writeError(conn, "", fmt.Errorf("peer credentials unavailable: %w", err))
			return
		}
		session.Peer = credentials
	}
	defer session.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The reader runs ahead of the handlers so that a hangup is
	// noticed while a handler is blocked: it cancels the session,
	// which interrupts the handler the way a signal interrupts a
	// blocked read. Clients must not half-close.
	requests := make(chan request)
	go func() {
		defer cancel()
		decoder := codec.NewDecoder(conn)
		for {
			var raw codec.RawMessage
			err := decoder.Decode(&raw)
			if err != nil && (errors.Is(err, io.EOF) || netutil.IsExpectedCloseError(err)) {
				return
			}
			if err == nil && len(raw) > maxRequestSize {
				err = fmt.Errorf("request of %d bytes exceeds %d", len(raw), maxRequestSize)
			}
			select {
			case requests <- request{raw: raw, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var next request
		select {
		case next = <-requests:
		case <-ctx.Done():
			return
		}
		if next.err != nil {
			s.writeError(conn, "", fmt.Errorf("invalid request: %w", next.err))
			return
		}
		if !s.dispatch(ctx, conn, session, next.raw) {
			return
		}
	}
}

// dispatch handles one request. It returns false when the session
// should end.
func (s *SocketServer) dispatch(ctx context.Context, conn net.Conn, session *Session, raw codec.RawMessage) bool {
	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return s.writeError(conn, "", fmt.Errorf("invalid request: %w", err))
	}
	if header.Action == "" {
		return s.writeError(conn, "", errors.New("missing required field: action"))
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return s.writeError(conn, header.Action, fmt.Errorf("unknown action %q", header.Action))
	}

	result, err := handler(ctx, session, []byte(raw))
	if err != nil {
		if s.logger.Enabled(ctx, slog.LevelDebug) {
			diagnostic, _ := codec.Diagnose(raw)
			s.logger.Debug("action failed",
				"action", header.Action,
				"request", diagnostic,
				"peer", session.Peer.String(),
				"error", err,
			)
		}
		return s.writeError(conn, header.Action, err)
	}
	return s.writeSuccess(conn, result)
}

// writeError sends a failure response. Write failures are logged at
// debug level and end the session.
func (s *SocketServer) writeError(conn net.Conn, action string, err error) bool {
	return s.write(conn, action, Response{
		OK:    false,
		Code:  s.codes.Classify(err),
		Error: err.Error(),
	})
}

// writeSuccess sends a success response. If result is nil, the
// response is {ok: true}. If non-nil, the value is marshaled as CBOR
// and placed in the "data" field.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) bool {
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return s.writeError(conn, "", fmt.Errorf("internal: marshaling response: %w", err))
		}
		response.Data = data
	}
	return s.write(conn, "", response)
}

func (s *SocketServer) write(conn net.Conn, action string, response Response) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:realclock // kernel I/O deadline
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "action", action, "error", err)
		return false
	}
	return true
}
