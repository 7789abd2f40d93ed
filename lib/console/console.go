// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/bureau-foundation/klog/msgbuf"
)

// ErrNoConsole is returned by Write when no structured console is
// attached.
var ErrNoConsole = errors.New("console: no structured console attached")

// Options configures a Console.
type Options struct {
	// Line is the structured console. Nil leaves only the raw face.
	Line io.Writer

	// Raw receives single characters. Default: os.Stderr.
	Raw io.Writer

	// Tee, when set, receives a copy of all console output with
	// carriage returns removed.
	Tee *msgbuf.Buffer
}

// Console serializes output to the system console.
type Console struct {
	mu       sync.Mutex
	line     io.Writer
	raw      io.Writer
	tee      *msgbuf.Buffer
	terminal bool
}

// New creates a Console.
func New(options Options) *Console {
	console := &Console{
		line: options.Line,
		raw:  options.Raw,
		tee:  options.Tee,
	}
	if console.raw == nil {
		console.raw = os.Stderr
	}
	if file, ok := console.raw.(*os.File); ok {
		console.terminal = term.IsTerminal(int(file.Fd()))
	}
	return console
}

// OpenDevice opens a console device or file for appending without
// making it the daemon's controlling terminal.
func OpenDevice(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|unix.O_NOCTTY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening console %s: %w", path, err)
	}
	return file, nil
}

// Structured reports whether a line-oriented console is attached.
func (c *Console) Structured() bool { return c.line != nil }

// Terminal reports whether the raw face is a terminal.
func (c *Console) Terminal() bool { return c.terminal }

// Write writes p to the structured console.
func (c *Console) Write(p []byte) (int, error) {
	if c.line == nil {
		return 0, ErrNoConsole
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.line.Write(p)
	c.copyToTee(p[:n])
	return n, err
}

// PutByte emits one character on the raw console. On a terminal a
// newline is preceded by a carriage return. Write errors are ignored;
// the raw console has nowhere to report them.
func (c *Console) PutByte(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b == '\n' && c.terminal {
		c.raw.Write([]byte{'\r', '\n'})
	} else {
		c.raw.Write([]byte{b})
	}
	if c.tee != nil {
		c.tee.PutByte(b)
	}
}

func (c *Console) copyToTee(p []byte) {
	if c.tee == nil {
		return
	}
	for _, b := range p {
		if b != '\r' {
			c.tee.PutByte(b)
		}
	}
}

// Close closes the structured console if it is closable.
func (c *Console) Close() error {
	if closer, ok := c.line.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
