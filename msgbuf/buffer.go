// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgbuf

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// bounceSize bounds how many bytes ReadTo copies out per lock hold.
const bounceSize = 4096

// Buffer is a message buffer attached to a region. All methods are
// safe for concurrent use.
type Buffer struct {
	// mu is the leaf lock. It guards the header and data area. Code
	// holding it never blocks, allocates, or acquires another lock.
	mu sync.Mutex

	header []byte
	data   []byte
	// size is the length of the data area, as recorded in the header.
	size          int
	reinitialized bool
}

func (b *Buffer) readCursor() int {
	return int(binary.LittleEndian.Uint64(b.header[offsetRead:]))
}

func (b *Buffer) writeCursor() int {
	return int(binary.LittleEndian.Uint64(b.header[offsetWrite:]))
}

func (b *Buffer) dropped() uint64 {
	return binary.LittleEndian.Uint64(b.header[offsetDropped:])
}

func (b *Buffer) setRead(cursor int) {
	binary.LittleEndian.PutUint64(b.header[offsetRead:], uint64(cursor))
}

func (b *Buffer) setWrite(cursor int) {
	binary.LittleEndian.PutUint64(b.header[offsetWrite:], uint64(cursor))
}

func (b *Buffer) setDropped(count uint64) {
	binary.LittleEndian.PutUint64(b.header[offsetDropped:], count)
}

// checkLocked panics if either cursor left the data area. A cursor out
// of range means the arithmetic above is wrong, and continuing would
// index outside the region.
func (b *Buffer) checkLocked() {
	read, write := b.readCursor(), b.writeCursor()
	if read < 0 || read >= b.size || write < 0 || write >= b.size {
		panic(fmt.Sprintf("msgbuf: cursor out of range: read=%d write=%d size=%d", read, write, b.size))
	}
}

// unread returns how many bytes lie between read and write.
func (b *Buffer) unread(read, write int) int {
	length := write - read
	if length < 0 {
		length += b.size
	}
	return length
}

// putLocked stores c at the write cursor. When the write cursor runs
// into the read cursor the oldest byte is discarded and counted.
func (b *Buffer) putLocked(c byte) {
	write := b.writeCursor()
	b.data[write] = c
	write++
	if write >= b.size {
		write = 0
	}
	b.setWrite(write)

	if read := b.readCursor(); read == write {
		read++
		if read >= b.size {
			read = 0
		}
		b.setRead(read)
		b.setDropped(b.dropped() + 1)
	}
	b.checkLocked()
}

// PutByte appends c, discarding the oldest byte if the buffer is full.
func (b *Buffer) PutByte(c byte) {
	b.mu.Lock()
	b.putLocked(c)
	b.mu.Unlock()
}

// Write appends p and always reports len(p) bytes written.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	for _, c := range p {
		b.putLocked(c)
	}
	b.mu.Unlock()
	return len(p), nil
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread(b.readCursor(), b.writeCursor())
}

// Capacity returns how many unread bytes the buffer holds before it
// starts discarding the oldest. The data area is one byte larger: one
// slot always stays free so a full buffer differs from an empty one.
func (b *Buffer) Capacity() int { return b.size - 1 }

// Dropped returns how many bytes were discarded unread since the count
// was last acknowledged.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped()
}

// AckDropped subtracts n from the drop count, stopping at zero. Bytes
// dropped after the caller sampled Dropped stay counted.
func (b *Buffer) AckDropped(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setDropped(b.dropped() - min(n, b.dropped()))
}

// Reinitialized reports whether Attach had to reset the region.
func (b *Buffer) Reinitialized() bool { return b.reinitialized }

// CheckOrRegister returns the number of unread bytes. When there are
// none, register runs before the lock is released, so a producer
// cannot append between the emptiness check and the registration.
// register runs under the leaf lock and must not block, allocate, or
// lock.
func (b *Buffer) CheckOrRegister(register func()) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	length := b.unread(b.readCursor(), b.writeCursor())
	if length == 0 {
		register()
	}
	return length
}

// Locked runs fn under the leaf lock. fn must not block, allocate, or
// lock.
func (b *Buffer) Locked(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

// ReadTo moves up to max of the oldest unread bytes into w and returns
// how many w accepted. Each contiguous run is copied out under the
// lock and written to w with the lock released, since w may block.
// It stops early on the first error from w, keeping every byte w
// already accepted consumed.
//
// Concurrent ReadTo calls may deliver the same bytes. A read cursor
// advance is applied only when it moves the cursor forward relative to
// the write cursor, so the later of two overlapping reads wins and the
// cursor never moves back over data written in the meantime.
func (b *Buffer) ReadTo(w io.Writer, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	bounce := make([]byte, min(max, bounceSize))

	total := 0
	for total < max {
		b.mu.Lock()
		read, write := b.readCursor(), b.writeCursor()
		run := b.size - read
		if write >= read {
			run = write - read
		}
		run = min(run, max-total, len(bounce))
		if run == 0 {
			b.mu.Unlock()
			break
		}
		copy(bounce, b.data[read:read+run])
		b.mu.Unlock()

		written, err := w.Write(bounce[:run])
		if written > 0 {
			b.mu.Lock()
			b.advanceLocked(read, written)
			b.mu.Unlock()
			total += written
		}
		if err != nil {
			return total, err
		}
		if written < run {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// advanceLocked moves the read cursor to from+n unless it is already
// at or beyond that position.
func (b *Buffer) advanceLocked(from, n int) {
	next := (from + n) % b.size
	read, write := b.readCursor(), b.writeCursor()
	if b.unread(next, write) <= b.unread(read, write) {
		b.setRead(next)
	}
	b.checkLocked()
}

// Snapshot returns a copy of the unread bytes without consuming them.
func (b *Buffer) Snapshot() []byte {
	out := make([]byte, b.size)

	b.mu.Lock()
	read, write := b.readCursor(), b.writeCursor()
	var n int
	if write >= read {
		n = copy(out, b.data[read:write])
	} else {
		n = copy(out, b.data[read:])
		n += copy(out[n:], b.data[:write])
	}
	b.mu.Unlock()

	return out[:n]
}
