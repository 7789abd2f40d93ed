// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bureau-foundation/klog/devsock"
)

// defaultSocketPath is where klogd listens unless configured otherwise.
const defaultSocketPath = "/run/klog/klogd.sock"

// connectionParams are the flags every command that talks to klogd
// shares.
type connectionParams struct {
	Socket  string        `flag:"socket" desc:"klogd socket path (default: $KLOG_SOCKET or /run/klog/klogd.sock)"`
	Timeout time.Duration `flag:"timeout" desc:"bound on connecting and on each request that does not wait for data" default:"5s"`
}

func (p *connectionParams) socketPath() string {
	if p.Socket != "" {
		return p.Socket
	}
	if path := os.Getenv("KLOG_SOCKET"); path != "" {
		return path
	}
	return defaultSocketPath
}

// connect opens a session with klogd.
func (p *connectionParams) connect(ctx context.Context) (*devsock.Client, error) {
	path := p.socketPath()
	dialCtx, cancel := p.bounded(ctx)
	defer cancel()
	client, err := devsock.Dial(dialCtx, path)
	if err != nil {
		return nil, fmt.Errorf("connecting to klogd at %s: %w", path, err)
	}
	return client, nil
}

// bounded derives a context limited by --timeout. A zero timeout
// leaves ctx unbounded.
func (p *connectionParams) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}

// parseEndpoint splits "network:address". A bare path is a Unix
// stream socket.
func parseEndpoint(endpoint string) (network, address string, err error) {
	if endpoint == "" {
		return "", "", fmt.Errorf("empty endpoint")
	}
	if strings.HasPrefix(endpoint, "/") {
		return "unix", endpoint, nil
	}
	network, address, ok := strings.Cut(endpoint, ":")
	if !ok || address == "" {
		return "", "", fmt.Errorf("endpoint %q is not network:address or an absolute path", endpoint)
	}
	return network, address, nil
}

// closeDevice closes the log device before the session ends, so the
// next reader can open it as soon as this command returns.
func closeDevice(client *devsock.Client, params connectionParams) {
	ctx, cancel := params.bounded(context.Background())
	defer cancel()
	client.CloseDevice(ctx)
}
