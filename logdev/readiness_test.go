// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bureau-foundation/klog/lib/testutil"
)

func TestPollReportsReadableData(t *testing.T) {
	device := openTestDevice(t, 64)
	device.Write([]byte("ready\n"))

	if got := device.Poll(EventIn|EventReadNormal|EventOut, nil); got != EventIn|EventReadNormal {
		t.Fatalf("Poll = %b, want EventIn|EventReadNormal", got)
	}
	if got := device.Poll(EventOut, nil); got != 0 {
		t.Fatalf("Poll(EventOut) = %b, want 0", got)
	}
}

func TestPollRegistersAndWakesOnTick(t *testing.T) {
	device := openTestDevice(t, 64)
	waiter := NewWaiter()

	if got := device.Poll(EventIn, waiter); got != 0 {
		t.Fatalf("Poll on empty buffer = %b, want 0", got)
	}

	device.Write([]byte("x"))
	device.clock.Advance(DefaultTickInterval - time.Millisecond)
	testutil.RequireNoReceive(t, waiter.Ready(), "waiter woken before the tick")

	device.clock.Advance(time.Millisecond)
	testutil.RequireReceive(t, waiter.Ready(), testTimeout, "waiter not woken")

	if got := device.Poll(EventIn, waiter); got != EventIn {
		t.Fatalf("Poll after wake = %b, want EventIn", got)
	}
}

func TestPollWaiterIsOneShotAndReusable(t *testing.T) {
	device := openTestDevice(t, 64)
	waiter := NewWaiter()
	device.Poll(EventIn, waiter)

	device.Write([]byte("a"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireReceive(t, waiter.Ready(), testTimeout, "first wake")

	// Not registered again, so more data does not signal it.
	device.Write([]byte("b"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireNoReceive(t, waiter.Ready(), "unregistered waiter woken")

	if _, err := device.buffer.ReadTo(io.Discard, 8); err != nil {
		t.Fatalf("ReadTo: %v", err)
	}

	device.Poll(EventIn, waiter)
	device.Write([]byte("c"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireReceive(t, waiter.Ready(), testTimeout, "reused waiter not woken")
}

func TestPollWakesEveryRegisteredWaiter(t *testing.T) {
	device := openTestDevice(t, 64)
	waiters := []*Waiter{NewWaiter(), NewWaiter(), NewWaiter()}
	for _, waiter := range waiters {
		device.Poll(EventIn, waiter)
	}
	// Registering twice does not link the waiter twice.
	device.Poll(EventIn, waiters[0])

	device.Write([]byte("x"))
	device.clock.Advance(DefaultTickInterval)
	for i, waiter := range waiters {
		testutil.RequireReceive(t, waiter.Ready(), testTimeout, "waiter %d not woken", i)
	}
}

func TestUnpoll(t *testing.T) {
	device := openTestDevice(t, 64)
	kept, removed := NewWaiter(), NewWaiter()
	device.Poll(EventIn, kept)
	device.Poll(EventIn, removed)
	device.Unpoll(removed)

	device.Write([]byte("x"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireReceive(t, kept.Ready(), testTimeout, "kept waiter not woken")
	testutil.RequireNoReceive(t, removed.Ready(), "unpolled waiter woken")
}

func TestCloseDropsPollWaiters(t *testing.T) {
	device := openTestDevice(t, 64)
	waiter := NewWaiter()
	if ready := device.Poll(EventIn, waiter); ready != 0 {
		t.Fatalf("Poll on empty buffer = %v", ready)
	}

	device.Close()
	testutil.RequireReceive(t, waiter.Ready(), testTimeout, "waiter not released by Close")

	if err := device.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	device.Write([]byte("x"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireNoReceive(t, waiter.Ready(), "waiter from the previous open woken")
}

func TestCloseDetachesWatchers(t *testing.T) {
	device := openTestDevice(t, 64)
	watcher, err := device.Watch(FilterRead)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	device.Close()
	if err := device.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	device.Write([]byte("hello\n"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireNoReceive(t, watcher.Events(), "watcher from the previous open triggered")

	// Detaching an already detached watcher is harmless.
	watcher.Detach()
}

func TestWatchRejectsWriteFilter(t *testing.T) {
	device := openTestDevice(t, 64)
	if _, err := device.Watch(FilterWrite); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Watch(FilterWrite) = %v, want ErrInvalidArgument", err)
	}
}

func TestWatcherReportsPendingBytes(t *testing.T) {
	device := openTestDevice(t, 64)
	watcher, err := device.Watch(FilterRead)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if watcher.Pending() != 0 {
		t.Fatalf("Pending() = %d on empty buffer", watcher.Pending())
	}

	device.Write([]byte("hello\n"))
	device.clock.Advance(DefaultTickInterval)
	if pending := testutil.RequireReceive(t, watcher.Events(), testTimeout, "watcher not triggered"); pending != 6 {
		t.Fatalf("event = %d, want 6", pending)
	}

	// The watcher stays attached across ticks and keeps only the newest count.
	device.Write([]byte("a"))
	device.clock.Advance(DefaultTickInterval)
	device.Write([]byte("b"))
	device.clock.Advance(DefaultTickInterval)
	if pending := testutil.RequireReceive(t, watcher.Events(), testTimeout, "watcher not retriggered"); pending != 8 {
		t.Fatalf("event = %d, want 8", pending)
	}

	watcher.Detach()
	device.Write([]byte("c"))
	device.clock.Advance(DefaultTickInterval)
	testutil.RequireNoReceive(t, watcher.Events(), "detached watcher triggered")
}
