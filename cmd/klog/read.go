// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/devsock"
	"github.com/bureau-foundation/klog/logdev"
)

type readParams struct {
	connectionParams
	renderParams
	Follow bool   `flag:"follow,f" desc:"keep reading as new messages arrive"`
	Max    int    `flag:"max" desc:"bytes moved per read request" default:"4096"`
	Bind   string `flag:"bind" desc:"forward injected lines to network:address while reading"`
}

func readCommand(std streams) *cli.Command {
	var params readParams
	return &cli.Command{
		Name:    "read",
		Summary: "Read and consume the message buffer",
		Description: `Open the log device and print what is pending, consuming it.

Only one reader may hold the device; a second fails with "device busy".
With --follow the command keeps the device open and prints messages as
they arrive until interrupted. While it holds the device, --bind makes
klogd forward injected syslog lines to a collector (a privileged
operation); the binding ends when the reader exits.

If the buffer overflowed since the last read, the first line is a drop
notice from klogd.`,
		Usage: "klog read [flags]",
		Examples: []cli.Example{
			{Description: "Print and consume everything pending", Command: "klog read"},
			{Description: "Act as the system log reader", Command: "klog read -f --bind unixgram:/run/log/collector"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("read", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runRead(ctx, std, &params)
		},
	}
}

func runRead(ctx context.Context, std streams, params *readParams) error {
	if params.Max <= 0 {
		return fmt.Errorf("--max must be positive")
	}
	renderer, err := newLineRenderer(std.Out, params.renderParams)
	if err != nil {
		return err
	}

	client, err := params.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := call(ctx, params.connectionParams, client.Open); err != nil {
		if errors.Is(err, logdev.ErrBusy) {
			return fmt.Errorf("another reader holds the log device")
		}
		return fmt.Errorf("opening log device: %w", err)
	}
	defer closeDevice(client, params.connectionParams)

	if params.Bind != "" {
		network, address, err := parseEndpoint(params.Bind)
		if err != nil {
			return err
		}
		if err := call(ctx, params.connectionParams, func(ctx context.Context) error {
			return client.Bind(ctx, network, address)
		}); err != nil {
			return fmt.Errorf("binding %s: %w", params.Bind, err)
		}
	}

	defer renderer.Flush()
	for {
		data, err := readOnce(ctx, client, params)
		if err != nil {
			if errors.Is(err, logdev.ErrWouldBlock) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if _, err := renderer.Write(data); err != nil {
			return err
		}
	}
}

// readOnce drains without waiting, or waits for data when following.
func readOnce(ctx context.Context, client *devsock.Client, params *readParams) ([]byte, error) {
	if params.Follow {
		return client.Read(ctx, params.Max, false)
	}
	readCtx, cancel := params.bounded(ctx)
	defer cancel()
	return client.Read(readCtx, params.Max, true)
}

// call runs a request that does not wait for data under --timeout.
func call(ctx context.Context, params connectionParams, request func(context.Context) error) error {
	callCtx, cancel := params.bounded(ctx)
	defer cancel()
	return request(callCtx)
}
