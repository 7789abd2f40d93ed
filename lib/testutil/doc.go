// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for klog packages.
//
// [RequireReceive], [RequireClosed], and [RequireEventually] wrap the
// timeout safety valve pattern so individual tests never call
// time.After themselves. Notifier timing in tests is driven by
// lib/clock's fake clock; the real-time timeouts here only keep a
// broken test from hanging forever.
//
// [RequireNoReceive] asserts that nothing is ready on a channel right
// now, which is how tests check that the notifier has not fired early.
//
// [SocketDir] creates a short temporary directory for Unix sockets,
// whose paths are limited to 108 bytes.
//
// All helpers call t.Fatalf on failure.
package testutil
