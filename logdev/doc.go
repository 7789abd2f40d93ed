// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logdev implements the log device: the single-consumer
// interface through which one privileged reader drains a
// [msgbuf.Buffer].
//
// A [Device] is constructed once over a buffer and lives as long as
// the process. It is either closed or open; [Device.Open] fails with
// [ErrBusy] while another consumer holds it. While open, the device
// supports:
//
//   - blocking, non-blocking, and context-interruptible reads
//     ([Device.Read]), preceded by a synthesized notice whenever the
//     buffer discarded unread bytes;
//   - readiness polling with atomic check-or-register semantics
//     ([Device.Poll]) and persistent event watchers ([Device.Watch]);
//   - asynchronous SIGIO delivery to a process or process group;
//   - integer control operations ([Device.Control]) and privileged
//     binding of the forwarding target used by the syslog injector
//     ([Device.BindTarget]).
//
// # Deferred wakeups
//
// Producers call [Device.Write] or [Device.Wakeup] from anywhere,
// including from inside a logging handler that cannot afford to take
// scheduler-level locks or send signals. A producer only appends to
// the buffer and sets an atomic flag. A timer running every
// [DefaultTickInterval] while the device is open observes the flag and
// does the actual work: waking pollers, notifying watchers, signalling
// the owner, and releasing blocked readers. Notification latency is
// therefore bounded by one tick.
//
// # Locking
//
// The buffer's leaf lock guards the device state bits, the blocked
// reader channel, and the poll registry, so a reader's emptiness check
// and its registration are atomic with respect to the tick. Open/close
// bookkeeping, the signal owner, and event watchers sit under a
// separate device mutex that is never held while taking the leaf
// lock's critical sections for long. The forwarding target has its
// own [Slot].
package logdev
