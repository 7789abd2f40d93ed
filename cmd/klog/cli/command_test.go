// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "klog",
		Subcommands: []*Command{
			{
				Name: "read",
				Run: func(ctx context.Context, args []string) error {
					called = "read"
					return nil
				},
			},
			{
				Name: "inject",
				Run: func(ctx context.Context, args []string) error {
					called = "inject"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"inject"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "inject" {
		t.Errorf("dispatched to %q, want %q", called, "inject")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var socketPath string
	var receivedArgs []string

	command := &Command{
		Name: "inject",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inject", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "/default.sock", "socket path")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--socket", "/tmp/test.sock", "hello"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if socketPath != "/tmp/test.sock" {
		t.Errorf("socket = %q, want /tmp/test.sock", socketPath)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "hello" {
		t.Errorf("args = %v, want [hello]", receivedArgs)
	}
}

func TestCommand_Execute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	var seen any
	root := &Command{
		Name: "klog",
		Subcommands: []*Command{{
			Name: "status",
			Run: func(ctx context.Context, args []string) error {
				seen = ctx.Value(key{})
				return nil
			},
		}},
	}
	if err := root.Execute(ctx, []string{"status"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if seen != "value" {
		t.Errorf("context value = %v", seen)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "klog",
		Subcommands: []*Command{{Name: "status"}, {Name: "inject"}},
	}

	err := root.Execute(context.Background(), []string{"staus"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "status"`) {
		t.Errorf("error = %v, want suggestion", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var follow bool
	command := &Command{
		Name: "read",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
			flagSet.BoolVar(&follow, "follow", false, "keep reading")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--folow"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --follow?") {
		t.Errorf("error = %v, want --follow suggestion", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:        "klog",
		Output:      &help,
		Subcommands: []*Command{{Name: "status", Summary: "show daemon state"}},
	}

	err := root.Execute(context.Background(), nil)
	if err == nil || err.Error() != "subcommand required" {
		t.Errorf("error = %v, want subcommand required", err)
	}
	if !strings.Contains(help.String(), "status") || !strings.Contains(help.String(), "show daemon state") {
		t.Errorf("help output = %q", help.String())
	}
}

func TestCommand_Execute_Help(t *testing.T) {
	var help bytes.Buffer
	var max int
	root := &Command{
		Name:   "klog",
		Output: &help,
		Subcommands: []*Command{{
			Name:        "read",
			Description: "Read and consume the message buffer.",
			Examples:    []Example{{Description: "Follow the log", Command: "klog read -f"}},
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
				flagSet.IntVar(&max, "max", 4096, "bytes per read")
				return flagSet
			},
			Run: func(ctx context.Context, args []string) error {
				t.Error("Run called for --help")
				return nil
			},
		}},
	}

	if err := root.Execute(context.Background(), []string{"read", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	output := help.String()
	for _, want := range []string{"Read and consume", "Usage:\n  klog read [flags]", "--max", "# Follow the log", "klog read -f"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}
