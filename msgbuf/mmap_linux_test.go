// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgbuf

import (
	"path/filepath"
	"testing"
)

func TestMapFileSurvivesRemap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgbuf")

	region, err := MapFile(path, 128)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	buffer, err := Attach(region.Bytes())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	buffer.Write([]byte("before restart\n"))
	if err := region.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	region, err = MapFile(path, 128)
	if err != nil {
		t.Fatalf("second MapFile: %v", err)
	}
	defer region.Close()
	buffer, err = Attach(region.Bytes())
	if err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	if buffer.Reinitialized() {
		t.Fatal("remapped region was reinitialized")
	}
	if got := buffer.Snapshot(); string(got) != "before restart\n" {
		t.Fatalf("Snapshot() = %q, want %q", got, "before restart\n")
	}
}

func TestMapFileResizeReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgbuf")

	region, err := MapFile(path, 64)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	buffer, _ := Attach(region.Bytes())
	buffer.Write([]byte("old size\n"))
	region.Close()

	region, err = MapFile(path, 96)
	if err != nil {
		t.Fatalf("MapFile with new capacity: %v", err)
	}
	defer region.Close()
	buffer, err = Attach(region.Bytes())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !buffer.Reinitialized() || buffer.Len() != 0 {
		t.Fatalf("Reinitialized() = %v Len() = %d, want true and 0", buffer.Reinitialized(), buffer.Len())
	}
}
