// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"context"
	"fmt"
	"io"
)

// dropNoticeLimit bounds the synthesized drop notice, newline
// included.
const dropNoticeLimit = 63

// dropNoticePriority is LOG_KERN|LOG_WARNING.
const dropNoticePriority = 4

// Read moves up to max bytes of buffered log data into w.
//
// When the buffer is empty, a non-blocking Read fails with
// ErrWouldBlock without touching device state. A blocking Read waits
// for the notifier to release it; cancelling ctx interrupts the wait
// with ErrInterrupted, and closing the device ends it with ErrClosed.
//
// If the buffer discarded unread bytes, a one-line notice reporting
// the count is written before any data. The count is acknowledged only
// once the whole notice reached w, so a failed write repeats the full
// notice on the next Read.
//
// Data is copied run by run until max bytes were delivered or the
// buffer is empty. An error from w stops the copy; bytes w accepted
// before the error stay consumed and are counted in the result.
func (d *Device) Read(ctx context.Context, w io.Writer, max int, nonblocking bool) (int, error) {
	generation, open := d.openGeneration()
	if !open {
		return 0, ErrClosed
	}
	if max <= 0 {
		return 0, nil
	}

	if err := d.waitReadable(ctx, generation, nonblocking); err != nil {
		return 0, err
	}

	total := 0
	if dropped := d.buffer.Dropped(); dropped > 0 {
		notice := dropNotice(dropped)
		notice = notice[:min(len(notice), max)]
		written, err := w.Write(notice)
		total += written
		if err != nil {
			return total, err
		}
		if written < len(notice) {
			return total, io.ErrShortWrite
		}
		d.buffer.AckDropped(dropped)
	}

	copied, err := d.buffer.ReadTo(w, max-total)
	return total + copied, err
}

// waitReadable returns once the buffer holds unread data. The open
// being waited under is identified by generation; a Close that lands
// before the reader parks is seen under the leaf lock, so the reader
// never parks on a device that will not wake it.
func (d *Device) waitReadable(ctx context.Context, generation uint64, nonblocking bool) error {
	for {
		var (
			wake   chan struct{}
			closed bool
		)
		pending := d.buffer.CheckOrRegister(func() {
			if d.openedGeneration != generation {
				closed = true
				return
			}
			if nonblocking {
				return
			}
			d.state |= stateReadWait
			wake = d.readWake
		})
		if pending > 0 {
			return nil
		}
		if closed {
			return ErrClosed
		}
		if nonblocking {
			return ErrWouldBlock
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
		}
		if current, _ := d.openGeneration(); current != generation {
			return ErrClosed
		}
	}
}

func dropNotice(dropped uint64) []byte {
	plural := "s"
	if dropped == 1 {
		plural = ""
	}
	notice := fmt.Appendf(nil, "<%d>klog: dropped %d byte%s, message buffer full\n",
		dropNoticePriority, dropped, plural)
	return notice[:min(len(notice), dropNoticeLimit)]
}
