// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the klog binary:
// a tree of [Command] values dispatched by name, pflag flag sets built
// from tagged parameter structs by [FlagsFromParams], "did you mean"
// suggestions for mistyped commands and flags, and --json output via
// [JSONOutput].
package cli
