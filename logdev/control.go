// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"fmt"
	"log/slog"
)

// Op is an integer control operation.
type Op int

const (
	// OpPending returns the number of unread bytes.
	OpPending Op = iota + 1
	// OpSetNonblocking accepts and ignores a mode; blocking is chosen
	// per Read call.
	OpSetNonblocking
	// OpSetAsync enables (arg != 0) or disables SIGIO on new data.
	OpSetAsync
	// OpSetOwner sets the SIGIO owner: a PID when positive, a process
	// group when negative, nobody when zero.
	OpSetOwner
	// OpGetOwner returns the SIGIO owner in OpSetOwner form.
	OpGetOwner
	// OpSetProcessGroup sets a process group (arg > 0) as the owner.
	OpSetProcessGroup
	// OpGetProcessGroup returns the owning process group, or the
	// negated PID when a single process owns the device.
	OpGetProcessGroup
)

var opNames = map[Op]string{
	OpPending:         "pending",
	OpSetNonblocking:  "set-nonblocking",
	OpSetAsync:        "set-async",
	OpSetOwner:        "set-owner",
	OpGetOwner:        "get-owner",
	OpSetProcessGroup: "set-pgrp",
	OpGetProcessGroup: "get-pgrp",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// ParseOp returns the Op named name, as printed by Op.String.
func ParseOp(name string) (Op, error) {
	for op, candidate := range opNames {
		if candidate == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// Control performs an integer control operation and returns its
// result (zero for operations that only set state). Unknown
// operations fail with ErrUnsupported.
func (d *Device) Control(caller Caller, op Op, arg int) (int, error) {
	switch op {
	case OpPending:
		return d.buffer.Len(), nil

	case OpSetNonblocking:
		return 0, nil

	case OpSetAsync:
		d.SetAsync(arg != 0)
		return 0, nil

	case OpSetOwner:
		return 0, d.SetOwner(Owner(arg))

	case OpGetOwner:
		return int(d.Owner()), nil

	case OpSetProcessGroup:
		if arg <= 0 {
			return 0, fmt.Errorf("%w: process group %d", ErrInvalidArgument, arg)
		}
		return 0, d.SetOwner(Owner(-arg))

	case OpGetProcessGroup:
		return -int(d.Owner()), nil

	default:
		d.logger.Debug("unsupported control operation", "op", int(op), "caller", caller.String())
		return 0, ErrUnsupported
	}
}

// SetAsync enables or disables SIGIO delivery on new data.
func (d *Device) SetAsync(enabled bool) {
	d.buffer.Locked(func() {
		if enabled {
			d.state |= stateAsync
		} else {
			d.state &^= stateAsync
		}
	})
}

// SetOwner sets the SIGIO owner after checking that it exists. Zero
// clears the owner.
func (d *Device) SetOwner(owner Owner) error {
	if owner != 0 {
		if err := d.signals.Validate(owner); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.owner = owner
	d.mu.Unlock()
	return nil
}

// Owner returns the SIGIO owner.
func (d *Device) Owner() Owner {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

// BindTarget replaces the forwarding target used by the syslog
// injector. Only privileged callers may bind; the privilege check
// happens before open is called, so unprivileged callers cannot make
// the daemon dial anything. The previous target is released after the
// swap; sends already holding it finish against it.
func (d *Device) BindTarget(caller Caller, open func() (*Target, error)) error {
	if !d.privilege.Privileged(caller) {
		return ErrPermissionDenied
	}
	target, err := open()
	if err != nil {
		return err
	}
	if err := d.target.Swap(target); err != nil {
		d.logger.Debug("releasing previous forwarding target", slog.Any("error", err))
	}
	d.logger.Info("forwarding target bound",
		slog.String("target", target.String()),
		slog.String("caller", caller.String()),
	)
	return nil
}

// Privileged reports whether caller passes the device's privilege
// check.
func (d *Device) Privileged(caller Caller) bool {
	return d.privilege.Privileged(caller)
}

// AcquireTarget returns a referenced handle on the bound forwarding
// target, or nil when none is bound. The caller must Release it.
func (d *Device) AcquireTarget() *Target {
	return d.target.Acquire()
}
