// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot packages a non-destructive copy of a message buffer
// for transfer: optionally compressed, always digested so the
// receiver can tell a damaged snapshot from a truncated log.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression identifies how Snapshot.Data is encoded.
type Compression uint8

const (
	// CompressionNone stores the buffer contents as is.
	CompressionNone Compression = iota
	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4
	// CompressionZstd is zstd at the default level. Log text
	// compresses well with it.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a name printed by Compression.String. The
// empty string means CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// ErrDigestMismatch means the decoded contents do not match the
// recorded digest.
var ErrDigestMismatch = errors.New("snapshot: digest mismatch")

// Snapshot is a digested, possibly compressed copy of buffer contents.
type Snapshot struct {
	Source      string      `cbor:"source"`
	Compression Compression `cbor:"compression"`
	Size        int         `cbor:"size"`
	Digest      []byte      `cbor:"digest"`
	Data        []byte      `cbor:"data"`
}

// Take builds a snapshot of data. When compression does not shrink the
// data, the snapshot is stored uncompressed.
func Take(source string, data []byte, compression Compression) (Snapshot, error) {
	digest := blake3.Sum256(data)
	snapshot := Snapshot{
		Source:      source,
		Compression: CompressionNone,
		Size:        len(data),
		Digest:      digest[:],
		Data:        data,
	}

	var compressed []byte
	switch compression {
	case CompressionNone:
		return snapshot, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = destination[:written]
	case CompressionZstd:
		compressed = zstdEncoder.EncodeAll(data, nil)
	default:
		return Snapshot{}, fmt.Errorf("unsupported compression %s", compression)
	}

	// Zero from CompressBlock means incompressible.
	if len(compressed) == 0 || len(compressed) >= len(data) {
		return snapshot, nil
	}
	snapshot.Compression = compression
	snapshot.Data = compressed
	return snapshot, nil
}

// Contents decodes the snapshot and verifies its digest.
func (s Snapshot) Contents() ([]byte, error) {
	var data []byte
	switch s.Compression {
	case CompressionNone:
		data = s.Data
	case CompressionLZ4:
		data = make([]byte, s.Size)
		read, err := lz4.UncompressBlock(s.Data, data)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		data = data[:read]
	case CompressionZstd:
		var err error
		data, err = zstdDecoder.DecodeAll(s.Data, make([]byte, 0, s.Size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported compression %s", s.Compression)
	}

	if len(data) != s.Size {
		return nil, fmt.Errorf("snapshot of %s: decoded %d bytes, expected %d", s.Source, len(data), s.Size)
	}
	digest := blake3.Sum256(data)
	if !bytes.Equal(digest[:], s.Digest) {
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, s.Source)
	}
	return data, nil
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}
