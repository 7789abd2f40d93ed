// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package devsock exposes a log device on klogd's Unix socket.
//
// Each connection is one session and plays the part of an open file
// descriptor on the device: a session that opens the device is the
// one allowed to read, poll, watch, control, and bind it, and closing
// the connection closes the device. Injection, snapshots, and status
// need no open device.
//
// [Register] installs the daemon side on a service.SocketServer.
// [Client] is the typed client used by the klog CLI.
package devsock
