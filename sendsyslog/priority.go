// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sendsyslog

// maxPriorityDigits bounds the numeric priority: facility and level
// masks together never exceed 1023.
const maxPriorityDigits = 4

// ParsePriority splits a leading "<N>" priority prefix, N being one to
// four decimal digits, from line. ok is false (and rest is line) when
// the prefix is absent or malformed.
func ParsePriority(line []byte) (priority int, rest []byte, ok bool) {
	if len(line) < 3 || line[0] != '<' {
		return 0, line, false
	}
	i := 1
	for i < len(line) && i <= maxPriorityDigits && line[i] >= '0' && line[i] <= '9' {
		priority = priority*10 + int(line[i]-'0')
		i++
	}
	if i == 1 || i >= len(line) || line[i] != '>' {
		return 0, line, false
	}
	return priority, line[i+1:], true
}

// StripPriority returns line without its "<N>" prefix, if it has one.
func StripPriority(line []byte) []byte {
	_, rest, _ := ParsePriority(line)
	return rest
}
