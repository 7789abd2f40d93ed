// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import "fmt"

// Caller identifies the process invoking a device operation.
type Caller struct {
	PID int
	UID int
	GID int
}

func (c Caller) String() string {
	return fmt.Sprintf("pid=%d uid=%d gid=%d", c.PID, c.UID, c.GID)
}

// Owner is the target of asynchronous SIGIO delivery: a process ID
// when positive, a process group ID negated when negative, nobody when
// zero.
type Owner int

// SignalDeliverer sends SIGIO to an owner.
type SignalDeliverer interface {
	// Validate reports ErrNoSuchProcess (possibly wrapped) when owner
	// names no existing process or group.
	Validate(owner Owner) error

	// Deliver sends SIGIO to owner.
	Deliver(owner Owner) error
}

// PrivilegeChecker decides whether a caller may perform privileged
// operations.
type PrivilegeChecker interface {
	Privileged(caller Caller) bool
}

// PrivilegeFunc adapts a function to PrivilegeChecker.
type PrivilegeFunc func(caller Caller) bool

// Privileged calls f.
func (f PrivilegeFunc) Privileged(caller Caller) bool { return f(caller) }

// RootOnly grants privilege to UID 0.
var RootOnly = PrivilegeFunc(func(caller Caller) bool { return caller.UID == 0 })

type noSignals struct{}

func (noSignals) Validate(Owner) error { return nil }
func (noSignals) Deliver(Owner) error  { return nil }
