// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// request uses cbor tags, the convention for socket-only types.
type request struct {
	Action      string `cbor:"action"`
	Max         int    `cbor:"max,omitempty"`
	Nonblocking bool   `cbor:"nonblocking,omitempty"`
}

// status uses json tags, the convention for types the CLI also prints
// as JSON.
type status struct {
	Pending int  `json:"pending"`
	Async   bool `json:"async"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := request{Action: "read", Max: 4096, Nonblocking: true}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded request
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	fields := map[string]any{"action": "inject", "flags": 1, "message": []byte("<14>hi")}

	first, err := Marshal(fields)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(fields)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestStreamCarriesSeveralValues(t *testing.T) {
	requests := []request{
		{Action: "open"},
		{Action: "read", Max: 16},
		{Action: "close"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, value := range requests {
		if err := encoder.Encode(value); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range requests {
		var got request
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got != want {
			t.Errorf("request %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(status{Pending: 12, Async: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := fields["pending"]; !ok {
		t.Fatalf("json tag name not used as CBOR key: %v", fields)
	}
}

func TestAnyDecodesToStringMap(t *testing.T) {
	data, err := Marshal(request{Action: "poll"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if fields["action"] != "poll" {
		t.Fatalf("action = %v", fields["action"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded request
	if err := Unmarshal([]byte{0xff, 0xfe}, &decoded); err == nil {
		t.Fatal("Unmarshal accepted invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(request{Action: "open"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"action"`) || !strings.Contains(diagnostic, `"open"`) {
		t.Fatalf("Diagnose = %s", diagnostic)
	}
}
