// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/logdev"
)

func controlCommand(std streams) *cli.Command {
	var params connectionParams
	return &cli.Command{
		Name:    "control",
		Summary: "Run a control operation on the log device",
		Description: `Open the log device, run one control operation, and print its result.

Operations: pending, set-nonblocking, set-async, set-owner, get-owner,
set-pgrp, get-pgrp. Settings last only while this command holds the
device, so the set operations are mainly useful for testing.`,
		Usage: "klog control [flags] <operation> [argument]",
		Examples: []cli.Example{
			{Description: "Unread bytes, as FIONREAD reports them", Command: "klog control pending"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("control", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 || len(args) > 2 {
				return fmt.Errorf("usage: klog control <operation> [argument]")
			}
			op, err := logdev.ParseOp(args[0])
			if err != nil {
				return err
			}
			arg := 0
			if len(args) == 2 {
				if arg, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("argument %q is not an integer", args[1])
				}
			}

			client, err := params.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := call(ctx, params, client.Open); err != nil {
				return fmt.Errorf("opening log device: %w", err)
			}
			defer closeDevice(client, params)

			var value int
			err = call(ctx, params, func(ctx context.Context) error {
				value, err = client.Control(ctx, op, arg)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(std.Out, "%d\n", value)
			return nil
		},
	}
}
