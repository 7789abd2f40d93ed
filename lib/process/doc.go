// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for klogd and the
// klog CLI. Errors that escape run() are reported here because the
// structured logger may not exist yet, and in klogd's case the logger
// writes into the device that failed to start.
package process
