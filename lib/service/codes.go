// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "errors"

// CodeInternal classifies errors no ErrorCode matches.
const CodeInternal = "internal"

// ErrorCode pairs a wire code with the sentinel error it stands for.
type ErrorCode struct {
	Code string
	Err  error
}

// ErrorCodes maps errors to wire codes and back. The server classifies
// handler errors with it; the client turns codes back into sentinels
// so callers can use errors.Is across the socket.
type ErrorCodes []ErrorCode

// Classify returns the code of the first entry err matches, or
// CodeInternal.
func (codes ErrorCodes) Classify(err error) string {
	for _, entry := range codes {
		if errors.Is(err, entry.Err) {
			return entry.Code
		}
	}
	return CodeInternal
}

// Lookup returns the sentinel for code, or nil.
func (codes ErrorCodes) Lookup(code string) error {
	for _, entry := range codes {
		if entry.Code == code {
			return entry.Err
		}
	}
	return nil
}
