// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console is the system console as seen by klogd.
//
// A [Console] has two faces. The structured face is a line-oriented
// writer (a terminal or log file opened by path) that takes whole
// lines. The raw face emits single characters and is always present,
// falling back to the daemon's standard error. Everything written
// through either face is also copied into an optional console message
// buffer, so console output can be read back later the way dmesg reads
// the kernel's console buffer.
package console
