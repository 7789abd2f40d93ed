// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides klog's standard CBOR encoding configuration.
//
// The klogd device socket speaks CBOR: requests, responses, and
// buffer snapshots. JSON appears only in klog's --json output. This
// package holds the one encoder and decoder configuration every
// package shares. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2), so the same logical value always produces the same
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the device socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct tags
//
// A `cbor` tag marks a type that only ever travels as CBOR. A `json`
// tag marks a type that is also printed as JSON by the CLI;
// fxamacker/cbor falls back to `json` tags when `cbor` tags are
// absent, so one tag names the field in both formats. Never put both
// tags on the same field.
package codec
