// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sendsyslog injects syslog lines from unprivileged callers.
//
// An [Injector] delivers each line to the forwarding target bound on
// the log device (normally a connection to the system log collector).
// When no target is bound and the caller asked for [FlagConsole], the
// line goes to the console instead, with its "<priority>" prefix
// removed. Otherwise injection fails with [ErrNotConnected].
//
// Failed injections are not retried. They are counted, and the next
// call first tries to deliver a one-line summary of how many messages
// were lost, the last error, and the PID that saw it.
package sendsyslog
