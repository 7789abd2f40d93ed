// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/logdev"
)

type logParams struct {
	connectionParams
	Priority int `flag:"priority,p" desc:"syslog priority of the line; negative omits the prefix" default:"6"`
}

func logCommand(std streams) *cli.Command {
	var params logParams
	return &cli.Command{
		Name:    "log",
		Summary: "Append a line to the message buffer",
		Description: `Append one line to the message buffer as klogd itself would, with a
"<priority>" prefix. The reader of the log device sees it on its next
read. Only privileged users may write to the buffer.`,
		Usage: "klog log [flags] <message...>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("log", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("message required")
			}
			client, err := params.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			err = call(ctx, params.connectionParams, func(ctx context.Context) error {
				return client.Log(ctx, params.Priority, strings.Join(args, " "))
			})
			if errors.Is(err, logdev.ErrPermissionDenied) {
				return fmt.Errorf("writing to the message buffer requires a privileged user: %w", err)
			}
			return err
		},
	}
}
