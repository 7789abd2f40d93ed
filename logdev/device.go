// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/klog/lib/clock"
	"github.com/bureau-foundation/klog/msgbuf"
)

// DefaultTickInterval is how often the deferred notifier runs while the
// device is open.
const DefaultTickInterval = 50 * time.Millisecond

// deviceState holds bits guarded by the buffer's leaf lock.
type deviceState uint8

const (
	// stateAsync enables SIGIO delivery to the owner on new data.
	stateAsync deviceState = 1 << iota
	// stateReadWait marks a reader blocked in Read.
	stateReadWait
)

// Options configures a Device. Zero values select defaults.
type Options struct {
	// Clock drives the notifier timer. Default: clock.Real().
	Clock clock.Clock

	// TickInterval is the notifier period. Default:
	// DefaultTickInterval.
	TickInterval time.Duration

	// Signals delivers SIGIO to the owner. Default: signals are
	// accepted and dropped.
	Signals SignalDeliverer

	// Privilege gates BindTarget. Default: RootOnly.
	Privilege PrivilegeChecker

	// Logger receives device diagnostics. Default: discarded.
	Logger *slog.Logger
}

// Device is the log device over one message buffer. Construct it once
// with New; it is never torn down, only opened and closed.
type Device struct {
	buffer    *msgbuf.Buffer
	clock     clock.Clock
	interval  time.Duration
	signals   SignalDeliverer
	privilege PrivilegeChecker
	logger    *slog.Logger

	// Guarded by the buffer's leaf lock. openedGeneration mirrors
	// generation while open and is zero while closed, so a reader
	// can tell under the leaf lock whether its open is still current.
	state            deviceState
	readWake         chan struct{}
	pollers          *Waiter
	openedGeneration uint64

	// needWakeup is set by producers and consumed by the tick.
	needWakeup atomic.Bool

	mu         sync.Mutex
	open       bool
	generation uint64
	timer      *clock.Timer
	owner      Owner
	watchers   map[*Watcher]struct{}

	target Slot
}

// New creates a closed Device draining buffer.
func New(buffer *msgbuf.Buffer, options Options) *Device {
	device := &Device{
		buffer:    buffer,
		clock:     options.Clock,
		interval:  options.TickInterval,
		signals:   options.Signals,
		privilege: options.Privilege,
		logger:    options.Logger,
		readWake:  make(chan struct{}),
		watchers:  make(map[*Watcher]struct{}),
	}
	if device.clock == nil {
		device.clock = clock.Real()
	}
	if device.interval <= 0 {
		device.interval = DefaultTickInterval
	}
	if device.signals == nil {
		device.signals = noSignals{}
	}
	if device.privilege == nil {
		device.privilege = RootOnly
	}
	if device.logger == nil {
		device.logger = slog.New(slog.DiscardHandler)
	}
	return device
}

// Buffer returns the message buffer the device drains.
func (d *Device) Buffer() *msgbuf.Buffer { return d.buffer }

// Open transitions the device to open and starts the notifier. It
// fails with ErrBusy if the device is already open.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return ErrBusy
	}
	d.open = true
	d.owner = 0
	d.generation++
	generation := d.generation
	d.buffer.Locked(func() { d.openedGeneration = generation })
	d.timer = d.clock.AfterFunc(d.interval, func() { d.tick(generation) })
	return nil
}

// Close releases the forwarding target, stops the notifier, clears the
// async mode and owner, and returns the device to closed. Readers
// blocked in Read return ErrClosed. Registered poll waiters are
// signalled and dropped, and event watchers are detached, so nothing
// registered by this opener fires after a later Open. Closing a
// closed device does nothing.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil
	}
	d.open = false
	d.generation++
	d.timer.Stop()
	d.timer = nil
	d.owner = 0
	clear(d.watchers)
	d.mu.Unlock()

	if err := d.target.Clear(); err != nil {
		d.logger.Debug("releasing forwarding target on close", slog.Any("error", err))
	}

	replacement := make(chan struct{})
	var (
		released chan struct{}
		pollers  *Waiter
	)
	d.buffer.Locked(func() {
		d.state = 0
		d.openedGeneration = 0
		released = d.readWake
		d.readWake = replacement
		pollers = d.pollers
		d.pollers = nil
		for waiter := pollers; waiter != nil; waiter = waiter.wakeNext {
			waiter.wakeNext = waiter.next
			waiter.next = nil
			waiter.registered = false
		}
	})
	for waiter := pollers; waiter != nil; waiter = waiter.wakeNext {
		waiter.signal()
	}
	close(released)
	return nil
}

// IsOpen reports whether the device is open.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// openGeneration returns the current open generation and whether the
// device is open. A reader that sees the generation change was
// overtaken by Close.
func (d *Device) openGeneration() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation, d.open
}

// Write appends p to the buffer and requests a deferred wakeup. It
// never blocks and never fails; it is the path for producers that run
// where nothing else is allowed.
func (d *Device) Write(p []byte) (int, error) {
	d.buffer.Write(p)
	d.Wakeup()
	return len(p), nil
}

// Log appends message with a "<priority>" prefix and a trailing
// newline, then requests a deferred wakeup. A negative priority omits
// the prefix.
func (d *Device) Log(priority int, message string) {
	line := make([]byte, 0, len(message)+8)
	if priority >= 0 {
		line = append(line, '<')
		line = strconv.AppendInt(line, int64(priority), 10)
		line = append(line, '>')
	}
	line = append(line, message...)
	if len(message) == 0 || message[len(message)-1] != '\n' {
		line = append(line, '\n')
	}
	d.Write(line)
}

// Wakeup asks the notifier to wake readers on its next tick. It only
// stores a flag; the store happens after the caller's buffer writes,
// so the tick that observes it also observes the data.
func (d *Device) Wakeup() {
	d.needWakeup.Store(true)
}

// Status is a point-in-time view of the device.
type Status struct {
	Open     bool   `json:"open"`
	Pending  int    `json:"pending"`
	Dropped  uint64 `json:"dropped"`
	Capacity int    `json:"capacity"`
	Async    bool   `json:"async"`
	Owner    Owner  `json:"owner"`
	Target   string `json:"target,omitempty"`
}

// Status reports the device's current state.
func (d *Device) Status() Status {
	d.mu.Lock()
	status := Status{Open: d.open, Owner: d.owner}
	d.mu.Unlock()

	d.buffer.Locked(func() {
		status.Async = d.state&stateAsync != 0
	})
	status.Pending = d.buffer.Len()
	status.Dropped = d.buffer.Dropped()
	status.Capacity = d.buffer.Capacity()

	if target := d.target.Acquire(); target != nil {
		status.Target = target.String()
		target.Release()
	}
	return status
}
