// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Klogd owns the message buffer and serves the log device on a Unix
// socket.
//
// On startup it maps the message buffer from the configured file (or
// allocates it in memory), attaches the console, builds the log device
// and the syslog injector over them, and listens for clients. A buffer
// file left by a previous run is reattached with its contents intact.
//
// Its own log records go to stderr as JSON and, at info level and
// above, into the message buffer as priority-prefixed lines:
//
//	<6>klogd: socket server listening path=/run/klog/klogd.sock
//
// Configuration comes from the file named by --config or KLOG_CONFIG;
// see lib/config for the fields. SIGINT and SIGTERM shut the daemon
// down: the socket is removed, open sessions are released, and the
// device is closed.
package main
