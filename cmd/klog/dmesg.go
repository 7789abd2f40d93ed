// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/klog/cmd/klog/cli"
	"github.com/bureau-foundation/klog/devsock"
	"github.com/bureau-foundation/klog/lib/snapshot"
)

type dmesgParams struct {
	connectionParams
	renderParams
	cli.JSONOutput
	Console     bool   `flag:"console" desc:"snapshot the console buffer instead of the message buffer"`
	Compression string `flag:"compression" desc:"transfer compression: none, lz4, or zstd" default:"zstd"`
}

// snapshotSummary is the --json form of a snapshot.
type snapshotSummary struct {
	Source      string `json:"source"`
	Compression string `json:"compression"`
	Size        int    `json:"size"`
	Transferred int    `json:"transferred"`
	Digest      string `json:"digest"`
	Contents    string `json:"contents"`
}

func dmesgCommand(std streams) *cli.Command {
	var params dmesgParams
	return &cli.Command{
		Name:    "dmesg",
		Summary: "Print the buffer without consuming it",
		Description: `Print a snapshot of the message buffer, or with --console the console
buffer. Unlike read, dmesg does not need the log device and leaves the
buffer untouched.

The snapshot travels compressed and is checked against its BLAKE3
digest before printing.`,
		Usage: "klog dmesg [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("dmesg", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runDmesg(ctx, std, &params)
		},
	}
}

func runDmesg(ctx context.Context, std streams, params *dmesgParams) error {
	compression, err := snapshot.ParseCompression(params.Compression)
	if err != nil {
		return err
	}
	source := devsock.SourceMessages
	if params.Console {
		source = devsock.SourceConsole
	}

	client, err := params.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var shot snapshot.Snapshot
	if err := call(ctx, params.connectionParams, func(ctx context.Context) error {
		shot, err = client.Snapshot(ctx, source, compression)
		return err
	}); err != nil {
		return fmt.Errorf("taking snapshot: %w", err)
	}
	contents, err := shot.Contents()
	if err != nil {
		return err
	}

	if done, err := params.EmitJSON(std.Out, snapshotSummary{
		Source:      shot.Source,
		Compression: shot.Compression.String(),
		Size:        shot.Size,
		Transferred: len(shot.Data),
		Digest:      hex.EncodeToString(shot.Digest),
		Contents:    string(contents),
	}); done {
		return err
	}

	renderer, err := newLineRenderer(std.Out, params.renderParams)
	if err != nil {
		return err
	}
	if _, err := renderer.Write(contents); err != nil {
		return err
	}
	return renderer.Flush()
}
