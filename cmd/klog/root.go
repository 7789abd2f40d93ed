// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/lib/version"
)

// root builds the command tree.
func root(std streams) *cli.Command {
	return &cli.Command{
		Name:        "klog",
		Description: "klog reads, snapshots, and writes the klogd message buffer.",
		Output:      std.Err,
		Subcommands: []*cli.Command{
			readCommand(std),
			dmesgCommand(std),
			injectCommand(std),
			logCommand(std),
			statusCommand(std),
			waitCommand(std),
			controlCommand(std),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(ctx context.Context, args []string) error {
					fmt.Fprintf(std.Out, "klog %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
