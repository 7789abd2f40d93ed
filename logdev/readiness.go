// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

// Events is a poll interest or readiness mask.
type Events uint16

const (
	// EventIn reports data available to read.
	EventIn Events = 1 << iota
	// EventReadNormal reports normal data available to read.
	EventReadNormal
	// EventOut reports writability. The device is never writable.
	EventOut
)

const readEvents = EventIn | EventReadNormal

// Waiter is a poll registration. A Waiter is linked into the device's
// registry without allocating, so registration can happen under the
// buffer's leaf lock. It is one-shot: each tick that finds new data
// signals and unlinks every registered waiter. A Waiter may be reused
// for subsequent polls.
type Waiter struct {
	// Guarded by the buffer's leaf lock.
	next       *Waiter
	registered bool

	// wakeNext chains waiters through a single notify pass.
	wakeNext *Waiter

	ready chan struct{}
}

// NewWaiter creates an unregistered Waiter.
func NewWaiter() *Waiter {
	return &Waiter{ready: make(chan struct{}, 1)}
}

// Ready is signalled when the device wakes this waiter.
func (w *Waiter) Ready() <-chan struct{} { return w.ready }

func (w *Waiter) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// registerLocked links w into the poll registry. The caller holds the
// leaf lock.
func (d *Device) registerLocked(w *Waiter) {
	if w.registered {
		return
	}
	w.next = d.pollers
	d.pollers = w
	w.registered = true
}

// Poll reports which read events in events are ready. When none are,
// waiter (if non-nil) is registered before the buffer lock is
// released, so a producer appending concurrently cannot slip between
// the check and the registration. The waiter is signalled on the
// first tick after new data arrives.
func (d *Device) Poll(events Events, waiter *Waiter) Events {
	interest := events & readEvents
	if interest == 0 {
		return 0
	}

	pending := d.buffer.CheckOrRegister(func() {
		if waiter != nil {
			d.registerLocked(waiter)
		}
	})
	if pending > 0 {
		return interest
	}
	return 0
}

// Unpoll removes waiter from the registry if it is still registered.
func (d *Device) Unpoll(waiter *Waiter) {
	d.buffer.Locked(func() {
		if !waiter.registered {
			return
		}
		link := &d.pollers
		for *link != nil && *link != waiter {
			link = &(*link).next
		}
		if *link == waiter {
			*link = waiter.next
		}
		waiter.next = nil
		waiter.registered = false
	})
}

// Filter selects the condition an event watcher observes.
type Filter int

const (
	// FilterRead fires while unread data is pending.
	FilterRead Filter = iota + 1
	// FilterWrite is not supported by the device.
	FilterWrite
)

// Watcher is a persistent event registration. Unlike a Waiter it stays
// attached across notifications until Detach. Each tick that finds new
// data delivers the pending byte count on Events.
type Watcher struct {
	device *Device
	events chan int
}

// Watch attaches an event watcher. Only FilterRead is supported.
func (d *Device) Watch(filter Filter) (*Watcher, error) {
	if filter != FilterRead {
		return nil, ErrInvalidArgument
	}
	watcher := &Watcher{device: d, events: make(chan int, 1)}

	d.mu.Lock()
	d.watchers[watcher] = struct{}{}
	d.mu.Unlock()
	return watcher, nil
}

// Events delivers the pending byte count each time the watcher
// triggers. Only the most recent count is kept.
func (w *Watcher) Events() <-chan int { return w.events }

// Pending evaluates the filter now: the number of unread bytes, which
// is non-zero exactly when the watcher would trigger.
func (w *Watcher) Pending() int { return w.device.buffer.Len() }

// Detach removes the watcher. It receives nothing afterwards.
func (w *Watcher) Detach() {
	w.device.mu.Lock()
	delete(w.device.watchers, w)
	w.device.mu.Unlock()
}

func (w *Watcher) deliver(pending int) {
	// Replace any count the consumer has not taken yet.
	select {
	case <-w.events:
	default:
	}
	select {
	case w.events <- pending:
	default:
	}
}

func (d *Device) notifyWatchers() {
	d.mu.Lock()
	if len(d.watchers) == 0 {
		d.mu.Unlock()
		return
	}
	watchers := make([]*Watcher, 0, len(d.watchers))
	for watcher := range d.watchers {
		watchers = append(watchers, watcher)
	}
	d.mu.Unlock()

	pending := d.buffer.Len()
	if pending == 0 {
		return
	}
	for _, watcher := range watchers {
		watcher.deliver(pending)
	}
}
