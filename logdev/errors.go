// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import "errors"

var (
	// ErrBusy is returned by Open while the device is already open.
	ErrBusy = errors.New("logdev: device busy")

	// ErrWouldBlock is returned by a non-blocking Read on an empty
	// buffer.
	ErrWouldBlock = errors.New("logdev: operation would block")

	// ErrInterrupted is returned by a blocking Read whose context
	// ended while it waited for data.
	ErrInterrupted = errors.New("logdev: interrupted")

	// ErrClosed is returned by Read on a closed device, and by a
	// blocked Read released because the device closed.
	ErrClosed = errors.New("logdev: device closed")

	// ErrPermissionDenied is returned by privileged operations for
	// unprivileged callers.
	ErrPermissionDenied = errors.New("logdev: permission denied")

	// ErrInvalidArgument is returned for malformed arguments and
	// unknown watch filters.
	ErrInvalidArgument = errors.New("logdev: invalid argument")

	// ErrUnsupported is returned by Control for unknown operations.
	ErrUnsupported = errors.New("logdev: unsupported control operation")

	// ErrNoSuchProcess is returned when setting a signal owner that
	// does not exist.
	ErrNoSuchProcess = errors.New("logdev: no such process")
)
