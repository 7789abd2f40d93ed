// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devsock

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/klog/lib/clock"
	"github.com/bureau-foundation/klog/lib/codec"
	"github.com/bureau-foundation/klog/lib/service"
	"github.com/bureau-foundation/klog/lib/snapshot"
	"github.com/bureau-foundation/klog/logdev"
	"github.com/bureau-foundation/klog/msgbuf"
	"github.com/bureau-foundation/klog/sendsyslog"
)

// DefaultDialTimeout bounds connecting to a collector on bind.
const DefaultDialTimeout = 5 * time.Second

// Daemon is what the socket exposes.
type Daemon struct {
	Device   *logdev.Device
	Injector *sendsyslog.Injector

	// Console is the console message buffer. Nil disables console
	// snapshots.
	Console *msgbuf.Buffer

	// Clock times poll and watch timeouts. Default: clock.Real().
	Clock clock.Clock

	// DialTimeout bounds bind. Default: DefaultDialTimeout.
	DialTimeout time.Duration

	Logger *slog.Logger
}

// sessionKey locates a session's device state.
type sessionKey struct{}

// sessionState is what a connection holds on the device.
type sessionState struct {
	opened  bool
	hooked  bool
	waiter  *logdev.Waiter
	watcher *logdev.Watcher
}

// Register installs every action on server.
func Register(server *service.SocketServer, daemon Daemon) {
	if daemon.Clock == nil {
		daemon.Clock = clock.Real()
	}
	if daemon.DialTimeout <= 0 {
		daemon.DialTimeout = DefaultDialTimeout
	}
	if daemon.Logger == nil {
		daemon.Logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{Daemon: daemon}

	server.Handle(ActionOpen, h.open)
	server.Handle(ActionClose, h.opened(h.close))
	server.Handle(ActionRead, h.opened(h.read))
	server.Handle(ActionPoll, h.opened(h.poll))
	server.Handle(ActionWatch, h.opened(h.watch))
	server.Handle(ActionControl, h.opened(h.control))
	server.Handle(ActionBind, h.opened(h.bind))
	server.Handle(ActionInject, h.inject)
	server.Handle(ActionLog, h.log)
	server.Handle(ActionSnapshot, h.snapshot)
	server.Handle(ActionStatus, h.status)
}

type handlers struct {
	Daemon
}

type sessionFunc func(ctx context.Context, session *service.Session, state *sessionState, raw []byte) (any, error)

func caller(session *service.Session) logdev.Caller {
	return logdev.Caller{PID: session.Peer.PID, UID: session.Peer.UID, GID: session.Peer.GID}
}

func state(session *service.Session) *sessionState {
	current, _ := session.Load(sessionKey{}).(*sessionState)
	if current == nil {
		current = &sessionState{}
		session.Store(sessionKey{}, current)
	}
	return current
}

// opened wraps actions that need the device open in this session.
func (h *handlers) opened(fn sessionFunc) service.ActionFunc {
	return func(ctx context.Context, session *service.Session, raw []byte) (any, error) {
		current := state(session)
		if !current.opened {
			return nil, fmt.Errorf("%w: device not open in this session", logdev.ErrClosed)
		}
		return fn(ctx, session, current, raw)
	}
}

func (h *handlers) open(ctx context.Context, session *service.Session, raw []byte) (any, error) {
	current := state(session)
	if err := h.Device.Open(); err != nil {
		return nil, err
	}
	current.opened = true
	if !current.hooked {
		current.hooked = true
		session.OnClose(func() {
			if current.opened {
				h.release(current)
				h.Logger.Info("log device closed by hangup", "peer", session.Peer.String())
			}
		})
	}
	h.Logger.Info("log device opened", "peer", session.Peer.String())
	return nil, nil
}

func (h *handlers) close(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	h.release(current)
	h.Logger.Info("log device closed", "peer", session.Peer.String())
	return nil, nil
}

func (h *handlers) release(current *sessionState) {
	if current.watcher != nil {
		current.watcher.Detach()
		current.watcher = nil
	}
	current.opened = false
	h.Device.Close()
}

func (h *handlers) read(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	var request readRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	limit := min(request.Max, MaxRead)

	var out bytes.Buffer
	if _, err := h.Device.Read(ctx, &out, limit, request.Nonblocking); err != nil {
		return nil, err
	}
	return ReadResult{Data: out.Bytes()}, nil
}

// wait blocks until ready fires, the timeout passes, or ctx ends. A
// negative timeout never passes.
func (h *handlers) wait(ctx context.Context, ready <-chan struct{}, timeoutMillis int64) error {
	var expired <-chan time.Time
	if timeoutMillis >= 0 {
		expired = h.Clock.After(time.Duration(timeoutMillis) * time.Millisecond)
	}
	select {
	case <-ready:
	case <-expired:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", logdev.ErrInterrupted, context.Cause(ctx))
	}
	return nil
}

func (h *handlers) poll(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	var request pollRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	events := logdev.Events(request.Events)

	if current.waiter == nil {
		current.waiter = logdev.NewWaiter()
	}
	waiter := current.waiter
	// Drain a signal left over from an earlier poll.
	select {
	case <-waiter.Ready():
	default:
	}

	if ready := h.Device.Poll(events, waiter); ready != 0 || request.Timeout == 0 {
		h.Device.Unpoll(waiter)
		return PollResult{Events: uint16(ready), Pending: h.Device.Buffer().Len()}, nil
	}

	err := h.wait(ctx, waiter.Ready(), request.Timeout)
	h.Device.Unpoll(waiter)
	if err != nil {
		return nil, err
	}
	return PollResult{
		Events:  uint16(h.Device.Poll(events, nil)),
		Pending: h.Device.Buffer().Len(),
	}, nil
}

func (h *handlers) watch(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	var request watchRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}

	if current.watcher == nil {
		watcher, err := h.Device.Watch(logdev.FilterRead)
		if err != nil {
			return nil, err
		}
		current.watcher = watcher
	}
	watcher := current.watcher

	if pending := watcher.Pending(); pending > 0 {
		return WatchResult{Triggered: true, Pending: pending}, nil
	}
	if request.Timeout == 0 {
		return WatchResult{}, nil
	}

	var expired <-chan time.Time
	if request.Timeout > 0 {
		expired = h.Clock.After(time.Duration(request.Timeout) * time.Millisecond)
	}
	select {
	case pending := <-watcher.Events():
		return WatchResult{Triggered: true, Pending: pending}, nil
	case <-expired:
		return WatchResult{}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", logdev.ErrInterrupted, context.Cause(ctx))
	}
}

func (h *handlers) control(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	var request controlRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	op, err := logdev.ParseOp(request.Op)
	if err != nil {
		return nil, err
	}
	value, err := h.Device.Control(caller(session), op, request.Arg)
	if err != nil {
		return nil, err
	}
	return ControlResult{Value: value}, nil
}

func (h *handlers) bind(ctx context.Context, session *service.Session, current *sessionState, raw []byte) (any, error) {
	var request bindRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	return nil, h.Device.BindTarget(caller(session), func() (*logdev.Target, error) {
		dialCtx, cancel := context.WithTimeout(ctx, h.DialTimeout)
		defer cancel()
		return logdev.DialTarget(dialCtx, request.Network, request.Address)
	})
}

func (h *handlers) inject(ctx context.Context, session *service.Session, raw []byte) (any, error) {
	var request injectRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	return nil, h.Injector.Inject(ctx, request.Message, sendsyslog.Flags(request.Flags), caller(session))
}

func (h *handlers) log(ctx context.Context, session *service.Session, raw []byte) (any, error) {
	var request logRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	if !h.Device.Privileged(caller(session)) {
		return nil, logdev.ErrPermissionDenied
	}
	h.Device.Log(request.Priority, request.Message)
	return nil, nil
}

func (h *handlers) snapshot(ctx context.Context, session *service.Session, raw []byte) (any, error) {
	var request snapshotRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}
	compression, err := snapshot.ParseCompression(request.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", logdev.ErrInvalidArgument, err)
	}

	if request.Source == "" {
		request.Source = SourceMessages
	}
	var buffer *msgbuf.Buffer
	switch request.Source {
	case SourceMessages:
		buffer = h.Device.Buffer()
	case SourceConsole:
		buffer = h.Console
	}
	if buffer == nil {
		return nil, fmt.Errorf("%w: no snapshot source %q", logdev.ErrInvalidArgument, request.Source)
	}
	return snapshot.Take(request.Source, buffer.Snapshot(), compression)
}

func (h *handlers) status(ctx context.Context, session *service.Session, raw []byte) (any, error) {
	result := StatusResult{
		Device:   h.Device.Status(),
		Injector: h.Injector.Stats(),
	}
	if h.Console != nil {
		result.ConsolePending = h.Console.Len()
		result.ConsoleCapacity = h.Console.Capacity()
	}
	return result, nil
}
