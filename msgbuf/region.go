// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic identifies an initialized message buffer region.
const Magic uint64 = 0x063061

// HeaderSize is the size of the region header preceding the data area.
const HeaderSize = 40

// Header field offsets. All fields are little-endian uint64.
const (
	offsetMagic   = 0
	offsetSize    = 8
	offsetRead    = 16
	offsetWrite   = 24
	offsetDropped = 32
)

// minDataSize is the smallest data area that can hold a byte: one slot
// always stays empty to tell a full buffer from an empty one.
const minDataSize = 2

// ErrRegionTooSmall is returned by Attach for regions that cannot hold
// the header and a usable data area.
var ErrRegionTooSmall = errors.New("msgbuf: region too small")

// RegionSize returns the region length needed for a buffer that holds
// capacity unread bytes.
func RegionSize(capacity int) int {
	return HeaderSize + capacity + 1
}

// NewRegion allocates a zeroed heap region for a buffer that holds
// capacity unread bytes.
func NewRegion(capacity int) []byte {
	return make([]byte, RegionSize(capacity))
}

// Attach builds a Buffer over region. A region whose header has the
// wrong magic, records a data size other than len(region)-HeaderSize,
// or holds a cursor outside the data area is zeroed and reinitialized.
// If the surviving data ends in a partial line, a newline is appended
// so new messages start on their own line.
//
// The Buffer takes ownership of region; callers must not modify it
// afterwards.
func Attach(region []byte) (*Buffer, error) {
	if len(region) < HeaderSize+minDataSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrRegionTooSmall, len(region), HeaderSize+minDataSize)
	}

	header := region[:HeaderSize]
	size := uint64(len(region) - HeaderSize)
	buffer := &Buffer{
		header: header,
		data:   region[HeaderSize:],
		size:   int(size),
	}

	read := binary.LittleEndian.Uint64(header[offsetRead:])
	write := binary.LittleEndian.Uint64(header[offsetWrite:])
	if binary.LittleEndian.Uint64(header[offsetMagic:]) != Magic ||
		binary.LittleEndian.Uint64(header[offsetSize:]) != size ||
		read >= size || write >= size {
		clear(region)
		binary.LittleEndian.PutUint64(header[offsetMagic:], Magic)
		binary.LittleEndian.PutUint64(header[offsetSize:], size)
		buffer.reinitialized = true
	}

	if write := buffer.writeCursor(); write > 0 && buffer.data[write-1] != '\n' {
		buffer.PutByte('\n')
	}
	return buffer, nil
}
