// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/klog/logdev"
)

// fanoutHandler hands each record to every handler that accepts it.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) *fanoutHandler {
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}

// deviceSink is the device the buffer handler writes through. It is
// set once the device exists and cleared before the buffer is
// unmapped; records logged while it is empty are dropped.
type deviceSink struct {
	device atomic.Pointer[logdev.Device]
}

func newDeviceSink(device *logdev.Device) *deviceSink {
	sink := &deviceSink{}
	sink.device.Store(device)
	return sink
}

// bufferHandler formats records as "klogd: message key=value" lines
// and appends them to the message buffer with a syslog priority
// derived from the level.
type bufferHandler struct {
	sink   *deviceSink
	level  slog.Leveler
	prefix string
	attrs  string
}

func newBufferHandler(sink *deviceSink, level slog.Leveler) *bufferHandler {
	return &bufferHandler{sink: sink, level: level}
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *bufferHandler) Handle(_ context.Context, record slog.Record) error {
	device := h.sink.device.Load()
	if device == nil {
		return nil
	}
	var line strings.Builder
	line.WriteString("klogd: ")
	line.WriteString(record.Message)
	line.WriteString(h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&line, h.prefix, attr)
		return true
	})
	device.Log(priority(record.Level), line.String())
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var formatted strings.Builder
	formatted.WriteString(h.attrs)
	for _, attr := range attrs {
		appendAttr(&formatted, h.prefix, attr)
	}
	clone := *h
	clone.attrs = formatted.String()
	return &clone
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// priority maps a level onto syslog severities: err, warning, info,
// debug.
func priority(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return 3
	case level >= slog.LevelWarn:
		return 4
	case level >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}

func appendAttr(line *strings.Builder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			appendAttr(line, groupPrefix, member)
		}
		return
	}

	line.WriteByte(' ')
	line.WriteString(prefix)
	line.WriteString(attr.Key)
	line.WriteByte('=')

	var value string
	switch attr.Value.Kind() {
	case slog.KindDuration:
		value = attr.Value.Duration().String()
	case slog.KindTime:
		value = attr.Value.Time().Format(time.RFC3339)
	default:
		value = attr.Value.String()
	}
	if value == "" || strings.ContainsAny(value, " =\"\n\t") {
		value = strconv.Quote(value)
	}
	line.WriteString(value)
}
