// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devsock

import (
	"context"
	"time"

	"github.com/bureau-foundation/klog/lib/service"
	"github.com/bureau-foundation/klog/lib/snapshot"
	"github.com/bureau-foundation/klog/logdev"
	"github.com/bureau-foundation/klog/sendsyslog"
)

// Client is one session with klogd. Errors match the logdev and
// sendsyslog sentinels with errors.Is.
type Client struct {
	session *service.Client
}

// Dial opens a session on socketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	session, err := service.Dial(ctx, socketPath, Codes)
	if err != nil {
		return nil, err
	}
	return &Client{session: session}, nil
}

// Close ends the session, closing the device if this session opened
// it.
func (c *Client) Close() error { return c.session.Close() }

// Open opens the log device for this session.
func (c *Client) Open(ctx context.Context) error {
	return c.session.Call(ctx, ActionOpen, nil, nil)
}

// CloseDevice closes the log device without ending the session.
func (c *Client) CloseDevice(ctx context.Context) error {
	return c.session.Call(ctx, ActionClose, nil, nil)
}

// Read moves up to max bytes out of the message buffer.
func (c *Client) Read(ctx context.Context, max int, nonblocking bool) ([]byte, error) {
	var result ReadResult
	err := c.session.Call(ctx, ActionRead, map[string]any{
		"max":         max,
		"nonblocking": nonblocking,
	}, &result)
	return result.Data, err
}

// Poll reports read readiness, waiting up to timeout for it. A
// negative timeout waits until data arrives.
func (c *Client) Poll(ctx context.Context, events logdev.Events, timeout time.Duration) (PollResult, error) {
	var result PollResult
	err := c.session.Call(ctx, ActionPoll, map[string]any{
		"events":  uint16(events),
		"timeout": millis(timeout),
	}, &result)
	return result, err
}

// Watch waits up to timeout for the session's persistent read watcher
// to trigger.
func (c *Client) Watch(ctx context.Context, timeout time.Duration) (WatchResult, error) {
	var result WatchResult
	err := c.session.Call(ctx, ActionWatch, map[string]any{"timeout": millis(timeout)}, &result)
	return result, err
}

// Control performs a control operation.
func (c *Client) Control(ctx context.Context, op logdev.Op, arg int) (int, error) {
	var result ControlResult
	err := c.session.Call(ctx, ActionControl, map[string]any{
		"op":  op.String(),
		"arg": arg,
	}, &result)
	return result.Value, err
}

// Bind makes klogd dial a collector and forward injected lines to it.
func (c *Client) Bind(ctx context.Context, network, address string) error {
	return c.session.Call(ctx, ActionBind, map[string]any{
		"network": network,
		"address": address,
	}, nil)
}

// Inject sends one syslog line.
func (c *Client) Inject(ctx context.Context, message []byte, flags sendsyslog.Flags) error {
	return c.session.Call(ctx, ActionInject, map[string]any{
		"message": message,
		"flags":   uint32(flags),
	}, nil)
}

// Log appends a line to the message buffer as klogd itself would.
func (c *Client) Log(ctx context.Context, priority int, message string) error {
	return c.session.Call(ctx, ActionLog, map[string]any{
		"priority": priority,
		"message":  message,
	}, nil)
}

// Snapshot copies a buffer without consuming it.
func (c *Client) Snapshot(ctx context.Context, source string, compression snapshot.Compression) (snapshot.Snapshot, error) {
	var result snapshot.Snapshot
	err := c.session.Call(ctx, ActionSnapshot, map[string]any{
		"source":      source,
		"compression": compression.String(),
	}, &result)
	return result, err
}

// Status reports daemon state.
func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var result StatusResult
	err := c.session.Call(ctx, ActionStatus, nil, &result)
	return result, err
}

func millis(timeout time.Duration) int64 {
	if timeout < 0 {
		return -1
	}
	return timeout.Milliseconds()
}
