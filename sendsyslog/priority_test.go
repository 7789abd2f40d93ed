// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sendsyslog

import "testing"

func TestParsePriority(t *testing.T) {
	tests := []struct {
		line         string
		wantPriority int
		wantRest     string
		wantOK       bool
	}{
		{line: "<14>system starting", wantPriority: 14, wantRest: "system starting", wantOK: true},
		{line: "<0>x", wantPriority: 0, wantRest: "x", wantOK: true},
		{line: "<1023>max", wantPriority: 1023, wantRest: "max", wantOK: true},
		{line: "<9999>", wantPriority: 9999, wantRest: "", wantOK: true},
		{line: "<12345>too long", wantRest: "<12345>too long"},
		{line: "<>empty", wantRest: "<>empty"},
		{line: "<1a>letter", wantRest: "<1a>letter"},
		{line: "<14", wantRest: "<14"},
		{line: "no prefix", wantRest: "no prefix"},
		{line: "", wantRest: ""},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			priority, rest, ok := ParsePriority([]byte(test.line))
			if ok != test.wantOK || priority != test.wantPriority || string(rest) != test.wantRest {
				t.Fatalf("ParsePriority(%q) = (%d, %q, %v), want (%d, %q, %v)",
					test.line, priority, rest, ok, test.wantPriority, test.wantRest, test.wantOK)
			}
			if got := string(StripPriority([]byte(test.line))); got != test.wantRest {
				t.Fatalf("StripPriority(%q) = %q, want %q", test.line, got, test.wantRest)
			}
		})
	}
}
