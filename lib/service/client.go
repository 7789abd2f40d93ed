// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/klog/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// socket.
const dialTimeout = 5 * time.Second

// ErrClientBroken is returned by Call after an earlier call was
// abandoned mid-response; the session is out of step and must be
// closed.
var ErrClientBroken = errors.New("service: session abandoned by an interrupted call")

// ServiceError is returned by Call when the server responds with
// ok=false. It unwraps to the sentinel registered for its code, so
// errors.Is works across the socket.
type ServiceError struct {
	Action  string
	Code    string
	Message string

	sentinel error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Unwrap returns the sentinel error for the response code, or nil.
func (e *ServiceError) Unwrap() error { return e.sentinel }

// Client holds one session with a SocketServer. Calls are serialized;
// the server handles a session's requests in order.
type Client struct {
	socketPath string
	codes      ErrorCodes

	mu      sync.Mutex
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder
	broken  bool
}

// Dial opens a session. codes maps response codes back to sentinels.
func Dial(ctx context.Context, socketPath string, codes ErrorCodes) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	return &Client{
		socketPath: socketPath,
		codes:      codes,
		conn:       conn,
		encoder:    codec.NewEncoder(conn),
		decoder:    codec.NewDecoder(conn),
	}, nil
}

// Call sends one request and decodes the response.
//
// The fields parameter holds the action's request fields; the client
// adds "action". Pass nil for actions without fields. On success, if
// result is non-nil and the response carries data, the data is decoded
// into result. On failure, Call returns a *ServiceError.
//
// Cancelling ctx abandons the call. The server side of a blocking
// action keeps running until the session closes, so the client is
// marked broken and later calls fail with ErrClientBroken.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return ErrClientBroken
	}

	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	deadline, _ := ctx.Deadline()
	c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	response, err := c.exchange(request)
	if err != nil {
		c.broken = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("calling %q: %w", action, ctxErr)
		}
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:   action,
			Code:     response.Code,
			Message:  response.Error,
			sentinel: c.codes.Lookup(response.Code),
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *Client) exchange(request map[string]any) (*Response, error) {
	if err := c.encoder.Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	var response Response
	if err := c.decoder.Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

// Close ends the session. The server runs the session's cleanup.
func (c *Client) Close() error {
	return c.conn.Close()
}
