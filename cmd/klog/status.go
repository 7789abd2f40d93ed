// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/devsock"
)

type statusParams struct {
	connectionParams
	cli.JSONOutput
}

func statusCommand(std streams) *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon state",
		Description: `Show the log device, the syslog injector, and the console buffer:
whether a reader holds the device, how much is pending and how much was
dropped, the bound collector, and the injection losses not yet
summarized.`,
		Usage: "klog status [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			client, err := params.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var status devsock.StatusResult
			if err := call(ctx, params.connectionParams, func(ctx context.Context) error {
				status, err = client.Status(ctx)
				return err
			}); err != nil {
				return err
			}

			if done, err := params.EmitJSON(std.Out, status); done {
				return err
			}
			return printStatus(std, status)
		},
	}
}

func printStatus(std streams, status devsock.StatusResult) error {
	device, injector := status.Device, status.Injector

	tw := tabwriter.NewWriter(std.Out, 2, 0, 2, ' ', 0)
	state := "closed"
	if device.Open {
		state = "open"
	}
	fmt.Fprintf(tw, "device:\t%s\n", state)
	fmt.Fprintf(tw, "pending:\t%d of %d bytes\n", device.Pending, device.Capacity)
	fmt.Fprintf(tw, "dropped:\t%d bytes\n", device.Dropped)
	if device.Async {
		fmt.Fprintf(tw, "sigio owner:\t%d\n", device.Owner)
	}
	target := device.Target
	if target == "" {
		target = "none"
	}
	fmt.Fprintf(tw, "collector:\t%s\n", target)
	if injector.Dropped > 0 {
		fmt.Fprintf(tw, "injection losses:\t%d message(s), last error %s, pid %d\n",
			injector.Dropped, injector.LastError, injector.PID)
	}
	if status.ConsoleCapacity > 0 {
		fmt.Fprintf(tw, "console buffer:\t%d of %d bytes\n", status.ConsolePending, status.ConsoleCapacity)
	}
	return tw.Flush()
}
