// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads klogd configuration.
//
// Configuration is loaded from a single file specified by either the
// KLOG_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Files ending in
// .json or .jsonc are read as JSON with comments; anything else is
// YAML.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// defaults are stricter: with no production section, raw console
// fallback is disabled.
//
// ${VAR} and ${VAR:-default} patterns are expanded in path fields
// after loading. ${KLOG_STATE} expands to the state directory.
package config
