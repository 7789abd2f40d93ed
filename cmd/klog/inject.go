// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/devsock"
	"github.com/bureau-foundation/klog/sendsyslog"
)

type injectParams struct {
	connectionParams
	Console  bool   `flag:"console" desc:"fall back to the system console when no collector is bound"`
	Priority int    `flag:"priority,p" desc:"prefix each line with <N>; negative sends lines as given" default:"-1"`
	Tag      string `flag:"tag,t" desc:"prefix each message with \"tag: \""`
}

func injectCommand(std streams) *cli.Command {
	var params injectParams
	return &cli.Command{
		Name:    "inject",
		Summary: "Send syslog lines through klogd",
		Description: `Send a syslog line to the collector bound by the log reader. With
--console, the line goes to the system console when no collector is
bound, without its priority prefix.

The message is the arguments joined by spaces. With no arguments, each
line of standard input is sent as its own message.

If klogd lost earlier lines, it first sends a line summarizing the
losses.`,
		Usage: "klog inject [flags] [message...]",
		Examples: []cli.Example{
			{Description: "Notice from a script, console fallback", Command: `klog inject --console -p 13 -t backup "snapshot complete"`},
			{Description: "Forward a file line by line", Command: "klog inject -t app < app.log"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inject", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			return runInject(ctx, std, &params, args)
		},
	}
}

func runInject(ctx context.Context, std streams, params *injectParams, args []string) error {
	if params.Priority > 1023 {
		return fmt.Errorf("--priority must be at most 1023")
	}
	var flags sendsyslog.Flags
	if params.Console {
		flags |= sendsyslog.FlagConsole
	}

	client, err := params.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	send := func(message string) error {
		line := params.format(message)
		err := call(ctx, params.connectionParams, func(ctx context.Context) error {
			return client.Inject(ctx, line, flags)
		})
		if errors.Is(err, sendsyslog.ErrNotConnected) && !params.Console {
			return fmt.Errorf("%w (no collector is bound; --console falls back to the console)", err)
		}
		return err
	}

	if len(args) > 0 {
		return send(strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(std.In)
	scanner.Buffer(make([]byte, 0, 4096), devsock.MaxRead)
	for scanner.Scan() {
		if err := send(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// format applies the tag and priority prefix.
func (p *injectParams) format(message string) []byte {
	var line []byte
	if p.Priority >= 0 {
		line = append(line, '<')
		line = strconv.AppendInt(line, int64(p.Priority), 10)
		line = append(line, '>')
	}
	if p.Tag != "" {
		line = append(line, p.Tag...)
		line = append(line, ": "...)
	}
	return append(line, message...)
}
