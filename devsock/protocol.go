// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devsock

import (
	"github.com/bureau-foundation/klog/lib/service"
	"github.com/bureau-foundation/klog/logdev"
	"github.com/bureau-foundation/klog/sendsyslog"
)

// Action names.
const (
	ActionOpen     = "open"
	ActionClose    = "close"
	ActionRead     = "read"
	ActionPoll     = "poll"
	ActionWatch    = "watch"
	ActionControl  = "control"
	ActionBind     = "bind"
	ActionInject   = "inject"
	ActionLog      = "log"
	ActionSnapshot = "snapshot"
	ActionStatus   = "status"
)

// Snapshot sources.
const (
	SourceMessages = "msgbuf"
	SourceConsole  = "console"
)

// MaxRead bounds the data returned by one read.
const MaxRead = 64 * 1024

// Codes maps device and injector errors to wire codes.
var Codes = service.ErrorCodes{
	{Code: "busy", Err: logdev.ErrBusy},
	{Code: "would-block", Err: logdev.ErrWouldBlock},
	{Code: "interrupted", Err: logdev.ErrInterrupted},
	{Code: "closed", Err: logdev.ErrClosed},
	{Code: "permission-denied", Err: logdev.ErrPermissionDenied},
	{Code: "invalid-argument", Err: logdev.ErrInvalidArgument},
	{Code: "unsupported", Err: logdev.ErrUnsupported},
	{Code: "no-such-process", Err: logdev.ErrNoSuchProcess},
	{Code: "not-connected", Err: sendsyslog.ErrNotConnected},
}

type readRequest struct {
	Max         int  `cbor:"max"`
	Nonblocking bool `cbor:"nonblocking,omitempty"`
}

// ReadResult carries the bytes a read moved out of the buffer.
type ReadResult struct {
	Data []byte `cbor:"data"`
}

type pollRequest struct {
	Events uint16 `cbor:"events"`
	// Timeout in milliseconds; negative waits indefinitely, zero
	// does not wait.
	Timeout int64 `cbor:"timeout"`
}

// PollResult reports readiness.
type PollResult struct {
	Events  uint16 `json:"events"`
	Pending int    `json:"pending"`
}

type watchRequest struct {
	Timeout int64 `cbor:"timeout"`
}

// WatchResult reports whether the session's read watcher triggered.
type WatchResult struct {
	Triggered bool `json:"triggered"`
	Pending   int  `json:"pending"`
}

type controlRequest struct {
	Op  string `cbor:"op"`
	Arg int    `cbor:"arg"`
}

// ControlResult is the value a control operation returned.
type ControlResult struct {
	Value int `json:"value"`
}

type bindRequest struct {
	Network string `cbor:"network"`
	Address string `cbor:"address"`
}

type injectRequest struct {
	Message []byte `cbor:"message"`
	Flags   uint32 `cbor:"flags,omitempty"`
}

type logRequest struct {
	Priority int    `cbor:"priority"`
	Message  string `cbor:"message"`
}

type snapshotRequest struct {
	Source      string `cbor:"source"`
	Compression string `cbor:"compression,omitempty"`
}

// StatusResult is the daemon's state as seen through the socket.
type StatusResult struct {
	Device          logdev.Status    `json:"device"`
	Injector        sendsyslog.Stats `json:"injector"`
	ConsolePending  int              `json:"console_pending"`
	ConsoleCapacity int              `json:"console_capacity"`
}
