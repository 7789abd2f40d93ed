// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/klog/devsock"
	"github.com/bureau-foundation/klog/lib/config"
	"github.com/bureau-foundation/klog/lib/snapshot"
	"github.com/bureau-foundation/klog/lib/testutil"
	"github.com/bureau-foundation/klog/sendsyslog"
)

const testTimeout = 5 * time.Second

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	directory := testutil.SocketDir(t)
	cfg := config.Default()
	cfg.StateDirectory = directory
	cfg.Buffer.Path = filepath.Join(directory, "state", "msgbuf")
	cfg.Buffer.Capacity = 8192
	cfg.Device.TickInterval = "1ms"
	cfg.Device.PrivilegedUIDs = []int{os.Getuid()}
	cfg.Socket.Path = filepath.Join(directory, "klogd.sock")
	cfg.Console.Device = filepath.Join(directory, "console")
	cfg.Console.Raw = false
	return cfg
}

// startTestDaemon runs a daemon until the returned stop function is
// called.
func startTestDaemon(t *testing.T, cfg *config.Config) (*daemon, func()) {
	t.Helper()
	d, err := newDaemon(cfg, daemonOptions{Stderr: io.Discard})
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	testutil.RequireEventually(t, testTimeout, func() bool {
		_, err := os.Stat(cfg.Socket.Path)
		return err == nil
	}, "socket never appeared")

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		if err := testutil.RequireReceive(t, done, testTimeout, "daemon did not stop"); err != nil {
			t.Errorf("Run: %v", err)
		}
		if err := d.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
	t.Cleanup(stop)
	return d, stop
}

func dial(t *testing.T, cfg *config.Config) *devsock.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	client, err := devsock.Dial(ctx, cfg.Socket.Path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDaemonServesDevice(t *testing.T) {
	cfg := testConfig(t)
	startTestDaemon(t, cfg)
	client := dial(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := client.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := client.Read(ctx, devsock.MaxRead, true)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(string(data), "<6>klogd: klogd starting") {
		t.Errorf("startup line missing from %q", data)
	}

	if err := client.Log(ctx, 5, "operator note"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	data, err = client.Read(ctx, devsock.MaxRead, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "<5>operator note\n" {
		t.Errorf("Read = %q", data)
	}
}

func TestDaemonConsoleInjection(t *testing.T) {
	cfg := testConfig(t)
	startTestDaemon(t, cfg)
	client := dial(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := client.Inject(ctx, []byte("<13>hello console"), sendsyslog.FlagConsole); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	contents, err := os.ReadFile(cfg.Console.Device)
	if err != nil {
		t.Fatalf("reading console: %v", err)
	}
	if string(contents) != "hello console\r\n" {
		t.Errorf("console = %q", contents)
	}

	shot, err := client.Snapshot(ctx, devsock.SourceConsole, snapshot.CompressionZstd)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := shot.Contents()
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	if string(data) != "hello console\n" {
		t.Errorf("console snapshot = %q", data)
	}
}

func TestDaemonWithoutConsole(t *testing.T) {
	cfg := testConfig(t)
	cfg.Console.Device = ""
	startTestDaemon(t, cfg)
	client := dial(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	err := client.Inject(ctx, []byte("nowhere to go"), sendsyslog.FlagConsole)
	if !errors.Is(err, sendsyslog.ErrNotConnected) {
		t.Fatalf("Inject = %v, want not connected", err)
	}
}

func TestDaemonBindsCollectorAtStart(t *testing.T) {
	cfg := testConfig(t)
	collectorPath := filepath.Join(filepath.Dir(cfg.Socket.Path), "collector")
	collector, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: collectorPath, Net: "unixgram"})
	if err != nil {
		t.Fatalf("ListenUnixgram: %v", err)
	}
	defer collector.Close()
	cfg.Collector = config.CollectorConfig{Network: "unixgram", Address: collectorPath, BindAtStart: true}

	d, _ := startTestDaemon(t, cfg)
	if status := d.device.Status(); status.Target == "" {
		t.Fatalf("no target bound: %+v", status)
	}

	client := dial(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := client.Inject(ctx, []byte("<14>forwarded"), 0); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	collector.SetReadDeadline(time.Now().Add(testTimeout)) //nolint:realclock // kernel I/O deadline
	datagram := make([]byte, 256)
	n, err := collector.Read(datagram)
	if err != nil {
		t.Fatalf("collector Read: %v", err)
	}
	if string(datagram[:n]) != "<14>forwarded" {
		t.Errorf("collector got %q", datagram[:n])
	}
}

func TestDaemonBufferSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	_, stop := startTestDaemon(t, cfg)
	client := dial(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := client.Log(ctx, 6, "before restart"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	client.Close()
	stop()

	second, _ := startTestDaemon(t, cfg)
	if second.buffer.Reinitialized() {
		t.Fatal("buffer was reinitialized on restart")
	}
	contents := string(second.buffer.Snapshot())
	if !strings.Contains(contents, "<6>before restart\n") || !strings.Contains(contents, "klogd stopped") {
		t.Errorf("restarted buffer = %q", contents)
	}
}

func TestNewDaemonInMemoryBuffer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Buffer.Path = ""
	cfg.Console.BufferCapacity = 0
	d, err := newDaemon(cfg, daemonOptions{Stderr: io.Discard})
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	defer d.Close()

	if d.buffer.Capacity() != cfg.Buffer.Capacity {
		t.Errorf("Capacity() = %d, want %d", d.buffer.Capacity(), cfg.Buffer.Capacity)
	}
	if d.consoleBuffer != nil {
		t.Error("console buffer created with zero capacity")
	}
	if _, err := os.Stat(filepath.Join(cfg.StateDirectory, "state")); !os.IsNotExist(err) {
		t.Errorf("state directory touched for an in-memory buffer: %v", err)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klogd.yaml")
	if err := os.WriteFile(path, []byte("buffer:\n  capacity: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil || !strings.Contains(err.Error(), "buffer.capacity") {
		t.Fatalf("loadConfig = %v, want buffer.capacity error", err)
	}
}

func TestRunVersion(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Fatalf("run(--version) = %v", err)
	}
}
