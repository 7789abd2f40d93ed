// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/klog/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return root(streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}).Execute(ctx, os.Args[1:])
}

// streams are the standard files a command reads and writes.
type streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}
