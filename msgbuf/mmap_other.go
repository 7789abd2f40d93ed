// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package msgbuf

import "errors"

// MappedRegion is a region backed by a shared file mapping. File
// mappings are only implemented on Linux.
type MappedRegion struct{}

// MapFile is only implemented on Linux.
func MapFile(path string, capacity int) (*MappedRegion, error) {
	return nil, errors.New("msgbuf: file-backed regions require linux")
}

// Bytes returns nil.
func (m *MappedRegion) Bytes() []byte { return nil }

// Close does nothing.
func (m *MappedRegion) Close() error { return nil }
