// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sigio delivers SIGIO to a log device's async owner.
//
// Owners follow kill(2): a positive value is a process ID, a negative
// value names the process group of its absolute value.
package sigio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/klog/logdev"
)

// Deliverer sends real signals with kill(2). It implements
// logdev.SignalDeliverer.
type Deliverer struct{}

// Validate checks that owner exists by sending it the null signal.
// A permission error means the target exists but belongs to someone
// else, which is still a valid owner.
func (Deliverer) Validate(owner logdev.Owner) error {
	if owner == 0 {
		return nil
	}
	err := unix.Kill(int(owner), 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return nil
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("%w: %s", logdev.ErrNoSuchProcess, describe(owner))
	default:
		return fmt.Errorf("checking %s: %w", describe(owner), err)
	}
}

// Deliver sends SIGIO to owner.
func (Deliverer) Deliver(owner logdev.Owner) error {
	if owner == 0 {
		return nil
	}
	if err := unix.Kill(int(owner), unix.SIGIO); err != nil {
		return fmt.Errorf("sending SIGIO to %s: %w", describe(owner), err)
	}
	return nil
}

func describe(owner logdev.Owner) string {
	if owner < 0 {
		return fmt.Sprintf("process group %d", -owner)
	}
	return fmt.Sprintf("pid %d", owner)
}
