// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sendsyslog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/klog/logdev"
)

// DefaultMaxLine is the longest message delivered; longer messages are
// truncated.
const DefaultMaxLine = 8192

// summaryLimit bounds the synthesized drop summary.
const summaryLimit = 79

// summaryPriority is LOG_KERN|LOG_WARNING.
const summaryPriority = 4

// Flags modify a single injection.
type Flags uint32

const (
	// FlagConsole allows console delivery when no target is bound.
	FlagConsole Flags = 1 << iota
)

// ErrNotConnected means no forwarding target is bound and console
// fallback was not requested. It wraps ENOTCONN.
var ErrNotConnected = fmt.Errorf("sendsyslog: no forwarding target: %w", unix.ENOTCONN)

// TargetSource supplies the currently bound forwarding target.
// *logdev.Device implements it.
type TargetSource interface {
	// AcquireTarget returns a referenced target, or nil when none is
	// bound. The caller releases it.
	AcquireTarget() *logdev.Target
}

// Console is the fallback sink. *console.Console implements it.
type Console interface {
	// Structured reports whether a line-oriented console is attached.
	Structured() bool

	// Write writes to the structured console.
	Write(p []byte) (int, error)

	// PutByte emits one character on the raw console.
	PutByte(c byte)
}

// Options configures an Injector. Zero values select defaults.
type Options struct {
	// MaxLine bounds message length. Default: DefaultMaxLine.
	MaxLine int

	// Logger receives injection diagnostics. Default: discarded.
	Logger *slog.Logger
}

// Stats is the failure-coalescing state: messages lost since the last
// delivered summary, and the most recent failure.
type Stats struct {
	Dropped   int    `json:"dropped"`
	LastError string `json:"last_error,omitempty"`
	PID       int    `json:"pid,omitempty"`
}

// Injector delivers injected log lines. It is safe for concurrent use.
type Injector struct {
	source  TargetSource
	console Console
	maxLine int
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int
	lastErr error
	pid     int
}

// New creates an Injector. console may be nil, in which case console
// fallback always fails with ErrNotConnected.
func New(source TargetSource, console Console, options Options) *Injector {
	injector := &Injector{
		source:  source,
		console: console,
		maxLine: options.MaxLine,
		logger:  options.Logger,
	}
	if injector.maxLine <= 0 {
		injector.maxLine = DefaultMaxLine
	}
	if injector.logger == nil {
		injector.logger = slog.New(slog.DiscardHandler)
	}
	return injector
}

// Inject delivers message on behalf of caller. If earlier injections
// failed, a summary of the losses is attempted first; its failure is
// not reported. A failure of message itself is returned and recorded
// for the next summary.
func (i *Injector) Inject(ctx context.Context, message []byte, flags Flags, caller logdev.Caller) error {
	if count, summary := i.pendingSummary(); count > 0 {
		if err := i.deliver(ctx, summary, 0); err == nil {
			i.settle(count)
		}
	}

	err := i.deliver(ctx, message, flags)
	if err != nil {
		i.record(err, caller.PID)
		i.logger.Debug("syslog injection failed",
			"caller", caller.String(),
			"error", err,
		)
	}
	return err
}

// Stats returns the current coalescing state.
func (i *Injector) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	stats := Stats{Dropped: i.dropped, PID: i.pid}
	if i.lastErr != nil {
		stats.LastError = i.lastErr.Error()
	}
	return stats
}

func (i *Injector) pendingSummary() (int, []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dropped == 0 {
		return 0, nil
	}
	return i.dropped, summaryLine(i.dropped, i.lastErr, i.pid)
}

// settle subtracts a reported count. Failures recorded while the
// summary was in flight stay pending for the next one.
func (i *Injector) settle(reported int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropped = max(i.dropped-reported, 0)
	if i.dropped == 0 {
		i.lastErr = nil
		i.pid = 0
	}
}

func (i *Injector) record(err error, pid int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropped++
	i.lastErr = err
	i.pid = pid
}

func summaryLine(dropped int, err error, pid int) []byte {
	plural := "s"
	if dropped == 1 {
		plural = ""
	}
	line := fmt.Appendf(nil, "<%d>sendsyslog: dropped %d message%s, error %s, pid %d",
		summaryPriority, dropped, plural, errorCode(err), pid)
	return line[:min(len(line), summaryLimit)]
}

// errorCode renders err as its errno number when it carries one, and
// as its message otherwise.
func errorCode(err error) string {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%d", int(errno))
	}
	if err == nil {
		return "0"
	}
	return err.Error()
}

// deliver sends one line: to the bound target if there is one, else to
// the console when flags allow it.
func (i *Injector) deliver(ctx context.Context, line []byte, flags Flags) error {
	line = line[:min(len(line), i.maxLine)]

	if target := i.source.AcquireTarget(); target != nil {
		defer target.Release()
		if _, err := target.Send(ctx, line); err != nil {
			return fmt.Errorf("sending to %s: %w", target, err)
		}
		return nil
	}

	if flags&FlagConsole == 0 || i.console == nil {
		return ErrNotConnected
	}

	line = StripPriority(line)
	if i.console.Structured() {
		if _, err := i.console.Write(line); err != nil {
			return fmt.Errorf("writing to console: %w", err)
		}
		i.console.Write([]byte("\r\n"))
		return nil
	}

	for _, c := range line {
		if c == 0 {
			break
		}
		i.console.PutByte(c)
	}
	i.console.PutByte('\n')
	return nil
}
