// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgbuf

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedRegion is a region backed by a shared file mapping. Bytes
// written into the buffer reach the file without explicit I/O, so a
// restarted daemon that maps the same file finds the previous
// contents and Attach keeps them.
type MappedRegion struct {
	file *os.File
	mem  []byte
}

// MapFile maps path as a region for a buffer holding capacity unread
// bytes, creating the file if needed. A file of the wrong size is
// resized; Attach then sees a size mismatch and reinitializes it.
func MapFile(path string, capacity int) (*MappedRegion, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("msgbuf: capacity must be positive, got %d", capacity)
	}
	size := RegionSize(capacity)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening region file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat region file %s: %w", path, err)
	}
	if info.Size() != int64(size) {
		if err := file.Truncate(int64(size)); err != nil {
			file.Close()
			return nil, fmt.Errorf("resizing region file %s: %w", path, err)
		}
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mapping region file %s: %w", path, err)
	}

	return &MappedRegion{file: file, mem: mem}, nil
}

// Bytes returns the mapped region. It must not be used after Close.
func (m *MappedRegion) Bytes() []byte { return m.mem }

// Close flushes the mapping to the file, unmaps it, and closes the
// file. The Buffer attached to the region must no longer be used.
func (m *MappedRegion) Close() error {
	var errs []error
	if err := unix.Msync(m.mem, unix.MS_SYNC); err != nil {
		errs = append(errs, fmt.Errorf("msync: %w", err))
	}
	if err := unix.Munmap(m.mem); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	m.mem = nil
	if err := m.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
