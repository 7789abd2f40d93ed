// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdev

import (
	"errors"
	"slices"
	"testing"
)

var rootCaller = Caller{PID: 1, UID: 0, GID: 0}

func TestControlPending(t *testing.T) {
	device := openTestDevice(t, 64)
	device.Write([]byte("twelve bytes"))

	pending, err := device.Control(rootCaller, OpPending, 0)
	if err != nil || pending != 12 {
		t.Fatalf("Control(OpPending) = (%d, %v), want (12, nil)", pending, err)
	}
}

func TestControlOwnerOperations(t *testing.T) {
	device := openTestDevice(t, 64)

	tests := []struct {
		name      string
		op        Op
		arg       int
		wantErr   error
		wantOwner Owner
	}{
		{name: "set pid", op: OpSetOwner, arg: 1234, wantOwner: 1234},
		{name: "set group through set-owner", op: OpSetOwner, arg: -42, wantOwner: -42},
		{name: "set pgrp", op: OpSetProcessGroup, arg: 99, wantOwner: -99},
		{name: "set pgrp zero", op: OpSetProcessGroup, arg: 0, wantErr: ErrInvalidArgument, wantOwner: -99},
		{name: "set pgrp negative", op: OpSetProcessGroup, arg: -5, wantErr: ErrInvalidArgument, wantOwner: -99},
		{name: "clear", op: OpSetOwner, arg: 0, wantOwner: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := device.Control(rootCaller, test.op, test.arg)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Control(%s, %d) = %v, want %v", test.op, test.arg, err, test.wantErr)
			}
			if owner := device.Owner(); owner != test.wantOwner {
				t.Fatalf("Owner() = %d, want %d", owner, test.wantOwner)
			}
		})
	}
}

func TestControlGetOwnerAndGroup(t *testing.T) {
	device := openTestDevice(t, 64)

	if _, err := device.Control(rootCaller, OpSetProcessGroup, 42); err != nil {
		t.Fatalf("set pgrp: %v", err)
	}
	if owner, _ := device.Control(rootCaller, OpGetOwner, 0); owner != -42 {
		t.Fatalf("get-owner = %d, want -42", owner)
	}
	if group, _ := device.Control(rootCaller, OpGetProcessGroup, 0); group != 42 {
		t.Fatalf("get-pgrp = %d, want 42", group)
	}

	if _, err := device.Control(rootCaller, OpSetOwner, 1234); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if group, _ := device.Control(rootCaller, OpGetProcessGroup, 0); group != -1234 {
		t.Fatalf("get-pgrp with pid owner = %d, want -1234", group)
	}
}

func TestControlSetOwnerRejectsMissingProcess(t *testing.T) {
	device := openTestDevice(t, 64)
	device.signals.missing[555] = true

	if _, err := device.Control(rootCaller, OpSetOwner, 555); !errors.Is(err, ErrNoSuchProcess) {
		t.Fatalf("Control(set-owner 555) = %v, want ErrNoSuchProcess", err)
	}
	if device.Owner() != 0 {
		t.Fatalf("Owner() = %d after failed set, want 0", device.Owner())
	}
}

func TestControlUnsupported(t *testing.T) {
	device := openTestDevice(t, 64)
	if _, err := device.Control(rootCaller, Op(0x5401), 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Control(unknown) = %v, want ErrUnsupported", err)
	}
	if _, err := device.Control(rootCaller, OpSetNonblocking, 1); err != nil {
		t.Fatalf("Control(set-nonblocking) = %v", err)
	}
}

func TestParseOp(t *testing.T) {
	for op := OpPending; op <= OpGetProcessGroup; op++ {
		parsed, err := ParseOp(op.String())
		if err != nil || parsed != op {
			t.Errorf("ParseOp(%q) = (%v, %v), want %v", op.String(), parsed, err, op)
		}
	}
	if _, err := ParseOp("flush"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseOp(flush) = %v, want ErrUnsupported", err)
	}
}

func TestAsyncDeliversSIGIOOnTick(t *testing.T) {
	device := openTestDevice(t, 64)
	if _, err := device.Control(rootCaller, OpSetOwner, 321); err != nil {
		t.Fatalf("set owner: %v", err)
	}

	// Not async yet: no signal.
	device.Write([]byte("a"))
	device.clock.Advance(DefaultTickInterval)
	if delivered := device.signals.Delivered(); len(delivered) != 0 {
		t.Fatalf("delivered %v without async mode", delivered)
	}

	if _, err := device.Control(rootCaller, OpSetAsync, 1); err != nil {
		t.Fatalf("set async: %v", err)
	}
	device.Write([]byte("b"))
	device.clock.Advance(DefaultTickInterval)
	if delivered := device.signals.Delivered(); !slices.Equal(delivered, []Owner{321}) {
		t.Fatalf("delivered %v, want [321]", delivered)
	}

	// No new data, no signal.
	device.clock.Advance(DefaultTickInterval)
	if delivered := device.signals.Delivered(); len(delivered) != 1 {
		t.Fatalf("delivered %v on an idle tick", delivered)
	}
}

func TestAsyncWithoutOwnerSendsNothing(t *testing.T) {
	device := openTestDevice(t, 64)
	device.SetAsync(true)
	device.Write([]byte("a"))
	device.clock.Advance(DefaultTickInterval)
	if delivered := device.signals.Delivered(); len(delivered) != 0 {
		t.Fatalf("delivered %v with no owner", delivered)
	}
}

func TestOpenAndCloseResetOwnerAndAsync(t *testing.T) {
	device := openTestDevice(t, 64)
	device.SetAsync(true)
	if err := device.SetOwner(10); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}

	device.Close()
	if device.Owner() != 0 {
		t.Fatalf("Owner() = %d after Close", device.Owner())
	}
	if err := device.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if status := device.Status(); status.Async || status.Owner != 0 {
		t.Fatalf("Status() after reopen = %+v, want async off and no owner", status)
	}
}

func TestBindTargetRequiresPrivilege(t *testing.T) {
	device := openTestDevice(t, 64)

	dialed := false
	err := device.BindTarget(Caller{PID: 500, UID: 1000}, func() (*Target, error) {
		dialed = true
		return NewTarget("test", &recordingConn{}), nil
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("BindTarget = %v, want ErrPermissionDenied", err)
	}
	if dialed {
		t.Fatal("unprivileged BindTarget opened a target")
	}
	if target := device.AcquireTarget(); target != nil {
		target.Release()
		t.Fatal("target bound after denied BindTarget")
	}
}

func TestBindTargetOpenFailure(t *testing.T) {
	device := openTestDevice(t, 64)
	refused := errors.New("connection refused")

	err := device.BindTarget(rootCaller, func() (*Target, error) { return nil, refused })
	if !errors.Is(err, refused) {
		t.Fatalf("BindTarget = %v, want %v", err, refused)
	}
}

func TestBindTargetCustomPrivilege(t *testing.T) {
	device := openTestDevice(t, 64)
	device.privilege = PrivilegeFunc(func(caller Caller) bool { return caller.UID == 1000 })

	conn := &recordingConn{}
	if err := device.BindTarget(Caller{PID: 500, UID: 1000}, func() (*Target, error) {
		return NewTarget("collector", conn), nil
	}); err != nil {
		t.Fatalf("BindTarget: %v", err)
	}
	if status := device.Status(); status.Target != "collector" {
		t.Fatalf("Status().Target = %q, want collector", status.Target)
	}

	if device.Status().Pending != 0 {
		t.Fatal("binding wrote to the buffer")
	}
}
