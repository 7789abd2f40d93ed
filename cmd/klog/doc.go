// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Klog is the command-line client for klogd.
//
// It reads the log device (consuming what it reads, as the single
// reader), prints non-destructive snapshots of the message buffer and
// the console buffer, injects syslog lines, and reports daemon state:
//
//	klog read -f                    follow the log, consuming it
//	klog read -f --bind unixgram:/run/log/collector
//	klog dmesg                      print the buffer without consuming it
//	klog dmesg --console            print what went to the console
//	klog inject --console -p 13 "disk replaced"
//	klog log -p 5 "maintenance window starts"
//	klog status
//	klog wait --timeout 10s         block until data is pending
//	klog control pending
//
// Lines are coloured by syslog severity when stdout is a terminal;
// escape sequences inside log text are always removed first.
//
// The daemon socket comes from --socket, then KLOG_SOCKET, then
// /run/klog/klogd.sock.
package main
