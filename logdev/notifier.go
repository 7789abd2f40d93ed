// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

// tick is the deferred half of Wakeup. It runs on the clock's timer
// every interval while the open generation that armed it is current,
// and is the only place that wakes pollers, notifies watchers, sends
// SIGIO, and releases blocked readers.
func (d *Device) tick(generation uint64) {
	if !d.current(generation) {
		return
	}

	if d.needWakeup.Swap(false) {
		d.notify()
	}

	d.mu.Lock()
	if d.open && d.generation == generation {
		d.timer.Reset(d.interval)
	}
	d.mu.Unlock()
}

func (d *Device) current(generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open && d.generation == generation
}

// notify performs the wakeup work. The need-wakeup flag is already
// cleared, so data appended from here on schedules another round.
func (d *Device) notify() {
	replacement := make(chan struct{})

	var (
		state    deviceState
		released chan struct{}
		pollers  *Waiter
	)
	d.buffer.Locked(func() {
		state = d.state
		if d.state&stateReadWait != 0 {
			d.state &^= stateReadWait
			released = d.readWake
			d.readWake = replacement
		}
		pollers = d.pollers
		d.pollers = nil
		for waiter := pollers; waiter != nil; waiter = waiter.wakeNext {
			waiter.wakeNext = waiter.next
			waiter.next = nil
			waiter.registered = false
		}
	})

	// A woken waiter may register again as soon as the lock drops;
	// that rewrites next, never wakeNext.
	for waiter := pollers; waiter != nil; waiter = waiter.wakeNext {
		waiter.signal()
	}

	d.notifyWatchers()

	if state&stateAsync != 0 {
		d.mu.Lock()
		owner := d.owner
		d.mu.Unlock()
		if owner != 0 {
			if err := d.signals.Deliver(owner); err != nil {
				d.logger.Debug("SIGIO delivery failed", "owner", int(owner), "error", err)
			}
		}
	}

	if released != nil {
		close(released)
	}
}
