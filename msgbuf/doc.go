// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package msgbuf implements the message buffer: a fixed-capacity byte
// ring that accumulates diagnostic text from any producer and is
// drained by a single consumer.
//
// The buffer lives inside a caller-supplied region whose header
// records a magic value, the capacity, both cursors, and the count of
// bytes overwritten before anyone read them. [Attach] validates that
// header and reinitializes the region when it does not describe a
// consistent buffer, so a region mapped from a file (see [MapFile])
// keeps its contents across daemon restarts.
//
// Every cursor mutation happens under a single leaf lock. Nothing run
// under that lock blocks, allocates, or takes another lock, so
// [Buffer.PutByte] and [Buffer.Write] are safe from any goroutine at
// any time, including from inside a slog handler that is itself
// logging about the buffer. [Buffer.ReadTo] releases the lock around
// each write to its destination.
//
// When the buffer is full the oldest byte is discarded and the drop
// counter increments. The consumer reports and acknowledges drops
// through [Buffer.Dropped] and [Buffer.AckDropped].
package msgbuf
