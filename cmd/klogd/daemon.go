// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/klog/devsock"
	"github.com/bureau-foundation/klog/lib/clock"
	"github.com/bureau-foundation/klog/lib/config"
	"github.com/bureau-foundation/klog/lib/console"
	"github.com/bureau-foundation/klog/lib/service"
	"github.com/bureau-foundation/klog/lib/sigio"
	"github.com/bureau-foundation/klog/lib/version"
	"github.com/bureau-foundation/klog/logdev"
	"github.com/bureau-foundation/klog/msgbuf"
	"github.com/bureau-foundation/klog/sendsyslog"
)

// daemonOptions carries what the process environment supplies.
type daemonOptions struct {
	// Stderr receives JSON log records and, when the config enables
	// it, raw console output.
	Stderr io.Writer

	// Level is the stderr log level. The copy kept in the message
	// buffer is always at info and above.
	Level slog.Level

	// Clock drives the device notifier. Default: clock.Real().
	Clock clock.Clock
}

// daemon is one running klogd.
type daemon struct {
	config *config.Config
	logger *slog.Logger
	sink   *deviceSink

	buffer        *msgbuf.Buffer
	consoleBuffer *msgbuf.Buffer
	device        *logdev.Device
	console       *console.Console
	injector      *sendsyslog.Injector
	server        *service.SocketServer

	closers []io.Closer
}

// newDaemon builds every component from cfg. Nothing listens until Run.
func newDaemon(cfg *config.Config, options daemonOptions) (*daemon, error) {
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	interval, err := cfg.TickInterval()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.SocketMode()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	d := &daemon{config: cfg, sink: newDeviceSink(nil)}
	d.logger = slog.New(newFanoutHandler(
		slog.NewJSONHandler(options.Stderr, &slog.HandlerOptions{Level: options.Level}),
		newBufferHandler(d.sink, slog.LevelInfo),
	))

	d.buffer, err = d.openBuffer(cfg.Buffer)
	if err != nil {
		d.Close()
		return nil, err
	}
	if cfg.Console.BufferCapacity > 0 {
		d.consoleBuffer, err = msgbuf.Attach(msgbuf.NewRegion(cfg.Console.BufferCapacity))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("creating console buffer: %w", err)
		}
	}

	self := os.Getpid()
	d.device = logdev.New(d.buffer, logdev.Options{
		Clock:        options.Clock,
		TickInterval: interval,
		Signals:      sigio.Deliverer{},
		Privilege: logdev.PrivilegeFunc(func(caller logdev.Caller) bool {
			return caller.PID == self || cfg.Privileged(caller.UID)
		}),
		Logger: d.logger.With("component", "logdev"),
	})
	d.sink.device.Store(d.device)

	consoleSink, err := d.openConsole(cfg.Console, options.Stderr)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.injector = sendsyslog.New(d.device, consoleSink, sendsyslog.Options{
		MaxLine: cfg.Device.MaxLine,
		Logger:  d.logger.With("component", "sendsyslog"),
	})

	d.server = service.NewSocketServer(cfg.Socket.Path, devsock.Codes, d.logger.With("component", "socket"))
	d.server.SetMode(mode)
	devsock.Register(d.server, devsock.Daemon{
		Device:   d.device,
		Injector: d.injector,
		Console:  d.consoleBuffer,
		Clock:    options.Clock,
		Logger:   d.logger.With("component", "devsock"),
	})
	return d, nil
}

// openBuffer maps the message buffer from its file, or allocates it in
// memory when no path is configured.
func (d *daemon) openBuffer(cfg config.BufferConfig) (*msgbuf.Buffer, error) {
	if cfg.Path == "" {
		return msgbuf.Attach(msgbuf.NewRegion(cfg.Capacity))
	}
	region, err := msgbuf.MapFile(cfg.Path, cfg.Capacity)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, region)
	buffer, err := msgbuf.Attach(region.Bytes())
	if err != nil {
		return nil, fmt.Errorf("attaching %s: %w", cfg.Path, err)
	}
	return buffer, nil
}

// openConsole builds the console. It returns a nil Console when
// neither a structured device nor the raw fallback is enabled, so
// console injection reports not-connected.
func (d *daemon) openConsole(cfg config.ConsoleConfig, stderr io.Writer) (sendsyslog.Console, error) {
	options := console.Options{Raw: io.Discard}
	if d.consoleBuffer != nil {
		options.Tee = d.consoleBuffer
	}
	if cfg.Device != "" {
		file, err := console.OpenDevice(cfg.Device)
		if err != nil {
			return nil, err
		}
		options.Line = file
	}
	if cfg.Raw {
		options.Raw = stderr
	}
	if options.Line == nil && !cfg.Raw {
		return nil, nil
	}
	d.console = console.New(options)
	return d.console, nil
}

// Run serves the device socket until ctx is cancelled.
func (d *daemon) Run(ctx context.Context) error {
	d.logger.Info("klogd starting",
		"version", version.Info(),
		"buffer", d.config.Buffer.Path,
		"capacity", d.buffer.Capacity(),
		"pending", d.buffer.Len(),
		"reattached", !d.buffer.Reinitialized(),
	)

	if d.config.Collector.BindAtStart {
		if err := d.bindCollector(ctx); err != nil {
			d.logger.Warn("binding collector failed",
				"network", d.config.Collector.Network,
				"address", d.config.Collector.Address,
				"error", err,
			)
		}
	}

	err := d.server.Serve(ctx)
	d.device.Close()
	d.logger.Info("klogd stopped")
	return err
}

// bindCollector binds the configured collector as the daemon itself.
// The binding lasts until a reader closes the device, as any bind does.
func (d *daemon) bindCollector(ctx context.Context) error {
	collector := d.config.Collector
	dialCtx, cancel := context.WithTimeout(ctx, devsock.DefaultDialTimeout)
	defer cancel()
	self := logdev.Caller{PID: os.Getpid(), UID: os.Getuid(), GID: os.Getgid()}
	return d.device.BindTarget(self, func() (*logdev.Target, error) {
		return logdev.DialTarget(dialCtx, collector.Network, collector.Address)
	})
}

// Close releases the console and the buffer mapping. The device is
// closed by Run. Log records after Close reach stderr only.
func (d *daemon) Close() error {
	d.sink.device.Store(nil)
	var errs []error
	if d.console != nil {
		errs = append(errs, d.console.Close())
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i].Close())
	}
	d.closers = nil
	return errors.Join(errs...)
}
