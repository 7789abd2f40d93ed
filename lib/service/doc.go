// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service is the socket plumbing between klogd and its
// clients.
//
// A [SocketServer] serves a CBOR request-response protocol on a Unix
// socket where each connection is a session, the way each open file
// descriptor of a device is. Handlers receive the [Session], which
// carries the peer's kernel-reported [Credentials] and any state the
// handlers attach to it; cleanup registered with [Session.OnClose]
// runs when the connection ends for any reason. A peer hanging up
// cancels the context of whatever handler is running for it.
//
// A [Client] holds one session open and issues calls in order.
// Failures travel as a code plus message; [ErrorCodes] maps sentinel
// errors to codes on the server and back on the client, so errors.Is
// works end to end.
package service
