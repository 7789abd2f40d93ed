// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the log device.
//
// The deferred notifier re-arms a short timer on every tick, and the
// socket layer bounds poll waits with a timeout. Both take a [Clock]
// instead of calling the time package directly, so tests can drive
// them with [Fake] and assert exact tick boundaries:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	device := logdev.New(buffer, logdev.Options{Clock: c})
//	// ... append data ...
//	c.Advance(49 * time.Millisecond) // nothing fires
//	c.Advance(time.Millisecond)      // tick fires, waiters wake
//
// [Real] is the production implementation.
package clock
