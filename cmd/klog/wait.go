// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/lib/process"
	"github.com/bureau-foundation/klog/logdev"
)

type waitParams struct {
	connectionParams
	cli.JSONOutput
	For   time.Duration `flag:"for" desc:"give up after this long; zero waits until data arrives"`
	Watch bool          `flag:"watch" desc:"wait through a persistent event watcher instead of a poll"`
}

// waitResult is what wait reports.
type waitResult struct {
	Ready   bool `json:"ready"`
	Pending int  `json:"pending"`
}

func waitCommand(std streams) *cli.Command {
	var params waitParams
	return &cli.Command{
		Name:    "wait",
		Summary: "Block until the message buffer has data",
		Description: `Open the log device and wait until unread data is pending, without
reading it. Prints the number of pending bytes. Exits 1 if --for
passes first.

Like read, wait holds the device, so it fails while another reader is
active.`,
		Usage: "klog wait [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("wait", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			client, err := params.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := call(ctx, params.connectionParams, client.Open); err != nil {
				return fmt.Errorf("opening log device: %w", err)
			}
			defer closeDevice(client, params.connectionParams)

			timeout := params.For
			if timeout == 0 {
				timeout = -1
			}
			var result waitResult
			if params.Watch {
				watched, err := client.Watch(ctx, timeout)
				if err != nil {
					return err
				}
				result = waitResult{Ready: watched.Triggered, Pending: watched.Pending}
			} else {
				polled, err := client.Poll(ctx, logdev.EventIn, timeout)
				if err != nil {
					return err
				}
				result = waitResult{Ready: logdev.Events(polled.Events)&logdev.EventIn != 0, Pending: polled.Pending}
			}

			if done, err := params.EmitJSON(std.Out, result); done {
				if err == nil && !result.Ready {
					return &process.ExitError{Code: 1}
				}
				return err
			}
			if !result.Ready {
				fmt.Fprintln(std.Err, "no data before timeout")
				return &process.ExitError{Code: 1}
			}
			fmt.Fprintf(std.Out, "%d\n", result.Pending)
			return nil
		},
	}
}
