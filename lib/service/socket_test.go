// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/klog/lib/codec"
	"github.com/bureau-foundation/klog/lib/testutil"
)

const testTimeout = 5 * time.Second

var errTestBusy = errors.New("busy")

var testCodes = ErrorCodes{{Code: "busy", Err: errTestBusy}}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startServer serves handlers on a fresh socket and returns its path.
func startServer(t *testing.T, register func(server *SocketServer)) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "klog.sock")
	server := NewSocketServer(socketPath, testCodes, testLogger())
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, testTimeout, "server did not stop"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	testutil.RequireEventually(t, testTimeout, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "socket not created")
	return socketPath
}

func dial(t *testing.T, socketPath string) *Client {
	t.Helper()
	client, err := Dial(context.Background(), socketPath, testCodes)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

type echoRequest struct {
	Message string `cbor:"message"`
}

func TestCallRoundTrip(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("echo", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			var request echoRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]string{"message": request.Message}, nil
		})
		server.Handle("nothing", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			return nil, nil
		})
	})
	client := dial(t, socketPath)

	var result map[string]string
	if err := client.Call(context.Background(), "echo", map[string]any{"message": "hello"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["message"] != "hello" {
		t.Fatalf("result = %v", result)
	}

	// Several calls share one session.
	if err := client.Call(context.Background(), "nothing", nil, nil); err != nil {
		t.Fatalf("second Call: %v", err)
	}
}

func TestUnknownAction(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {})
	client := dial(t, socketPath)

	err := client.Call(context.Background(), "missing", nil, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) || serviceError.Code != CodeInternal {
		t.Fatalf("Call = %v, want internal ServiceError", err)
	}
}

func TestErrorCodesRoundTrip(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("open", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			return nil, errTestBusy
		})
	})
	client := dial(t, socketPath)

	err := client.Call(context.Background(), "open", nil, nil)
	if !errors.Is(err, errTestBusy) {
		t.Fatalf("Call = %v, want errors.Is busy", err)
	}
}

func TestSessionStateAndCleanup(t *testing.T) {
	type counterKey struct{}
	closed := make(chan int, 1)

	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("count", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			count, _ := session.Load(counterKey{}).(int)
			if count == 0 {
				session.OnClose(func() {
					closed <- session.Load(counterKey{}).(int)
				})
			}
			count++
			session.Store(counterKey{}, count)
			return count, nil
		})
	})
	client := dial(t, socketPath)

	for want := 1; want <= 3; want++ {
		var count int
		if err := client.Call(context.Background(), "count", nil, &count); err != nil {
			t.Fatalf("Call: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	// A second session starts from scratch.
	other := dial(t, socketPath)
	var count int
	if err := other.Call(context.Background(), "count", nil, &count); err != nil || count != 1 {
		t.Fatalf("other session count = (%d, %v), want 1", count, err)
	}

	client.Close()
	if final := testutil.RequireReceive(t, closed, testTimeout, "cleanup did not run"); final != 3 {
		t.Fatalf("cleanup saw count %d, want 3", final)
	}
}

func TestHangupCancelsBlockedHandler(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan error, 1)

	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("wait", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			close(started)
			<-ctx.Done()
			cancelled <- ctx.Err()
			return nil, ctx.Err()
		})
	})
	client := dial(t, socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	callDone := make(chan error, 1)
	go func() { callDone <- client.Call(ctx, "wait", nil, nil) }()
	testutil.RequireClosed(t, started, testTimeout, "handler not started")

	cancel()
	if err := testutil.RequireReceive(t, callDone, testTimeout, "call not abandoned"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Call = %v, want context.Canceled", err)
	}
	if err := client.Call(context.Background(), "wait", nil, nil); !errors.Is(err, ErrClientBroken) {
		t.Fatalf("Call after abandon = %v, want ErrClientBroken", err)
	}

	client.Close()
	testutil.RequireReceive(t, cancelled, testTimeout, "handler not cancelled by hangup")
}

func TestPeerCredentials(t *testing.T) {
	peers := make(chan Credentials, 1)
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("whoami", func(ctx context.Context, session *Session, raw []byte) (any, error) {
			peers <- session.Peer
			return nil, nil
		})
	})
	client := dial(t, socketPath)

	if err := client.Call(context.Background(), "whoami", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	peer := testutil.RequireReceive(t, peers, testTimeout, "handler not called")
	if peer.PID != os.Getpid() || peer.UID != os.Getuid() {
		t.Fatalf("peer = %s, want pid=%d uid=%d", peer, os.Getpid(), os.Getuid())
	}
}

func TestSocketMode(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.SetMode(0o666)
	})
	testutil.RequireEventually(t, testTimeout, func() bool {
		info, err := os.Stat(socketPath)
		return err == nil && info.Mode().Perm() == 0o666
	}, "socket mode not applied")
}

func TestErrorCodesClassify(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), errTestBusy)
	if code := testCodes.Classify(wrapped); code != "busy" {
		t.Fatalf("Classify = %q, want busy", code)
	}
	if code := testCodes.Classify(errors.New("other")); code != CodeInternal {
		t.Fatalf("Classify = %q, want internal", code)
	}
	if testCodes.Lookup("busy") != errTestBusy || testCodes.Lookup("nope") != nil {
		t.Fatal("Lookup mismatch")
	}
}
