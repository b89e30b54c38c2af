/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package responder accepts raw TCP connections from field appliances,
// identifies the device by source address and hands known devices to the
// notifier. Connections carry no payload; the connect itself is the event.
package responder

//go:generate mockgen -destination=mock_notifier.go -package=responder github.com/carverauto/tcpresponder/pkg/responder Notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/tcpresponder/pkg/directory"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

var errAlreadyListening = errors.New("listener already bound")

// Notifier accepts a notification for a resolved device without blocking.
type Notifier interface {
	Notify(address string) error
}

// Listener is the connection acceptor. The accept loop never waits on
// per-connection work: each connection is handled on its own goroutine,
// bounded by a semaphore, and connections beyond the bound are closed
// immediately.
type Listener struct {
	addr          string
	dir           directory.Directory
	notifier      Notifier
	sem           *semaphore.Weighted
	lookupTimeout time.Duration
	log           logger.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup
}

func NewListener(cfg models.ListenerConfig, dir directory.Directory, notifier Notifier, log logger.Logger) *Listener {
	addr := cfg.ListenAddr
	if addr == "" {
		addr = models.DefaultListenAddr
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = models.DefaultMaxConnections
	}

	lookupTimeout := time.Duration(cfg.LookupTimeout)
	if lookupTimeout <= 0 {
		lookupTimeout = models.DefaultLookupTimeout
	}

	return &Listener{
		addr:          addr,
		dir:           dir,
		notifier:      notifier,
		sem:           semaphore.NewWeighted(maxConns),
		lookupTimeout: lookupTimeout,
		log:           log,
	}
}

func (*Listener) Name() string { return "listener" }

// Listen binds the socket. Calling it before Run lets startup fail fast on
// a bad address.
func (l *Listener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return errAlreadyListening
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	l.ln = ln

	l.log.Info().Str("address", ln.Addr().String()).Msg("Listening for device connections")

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}

// Run accepts connections until ctx is done, then stops.
func (l *Listener) Run(ctx context.Context) error {
	if l.Addr() == nil {
		if err := l.Listen(ctx); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, l.Stop)
	defer stop()

	err := l.serve(ctx)

	l.Stop()

	return err
}

// Stop closes the socket, which unblocks Accept, and waits for in-flight
// handlers.
func (l *Listener) Stop() {
	l.mu.Lock()

	if !l.closed {
		l.closed = true

		if l.ln != nil {
			if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				l.log.Warn().Err(err).Msg("Error closing listener")
			}
		}
	}

	l.mu.Unlock()

	l.wg.Wait()
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

func (l *Listener) serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	var delay time.Duration

	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				l.log.Info().Msg("Listener stopped")
				return nil
			}

			recordAcceptError()

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}

			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}

			l.log.Warn().Err(err).Dur("retry_in", delay).Msg("Accept failed")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			continue
		}

		delay = 0

		if !l.sem.TryAcquire(1) {
			recordConnection(resultShed)
			l.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("Connection limit reached, shedding connection")

			_ = conn.Close()

			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			l.sem.Release(1)
			_ = conn.Close()

			return nil
		}

		l.wg.Add(1)
		l.mu.Unlock()

		go l.handle(ctx, conn)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	recordInFlight(1)

	defer func() {
		recordInFlight(-1)
		l.sem.Release(1)
		l.wg.Done()
	}()

	connLog := l.log.With().
		Str("conn_id", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	closed := false

	defer func() {
		if !closed {
			_ = conn.Close()
		}

		if r := recover(); r != nil {
			recordConnection(resultPanic)
			connLog.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Connection handler panicked")
		}
	}()

	ctx, span := logger.GetTracer(tracerName).Start(ctx, "responder.connection")
	defer span.End()

	address := peerAddress(conn.RemoteAddr())
	span.SetAttributes(attribute.String("net.peer.ip", address))

	lookupCtx, cancel := context.WithTimeout(ctx, l.lookupTimeout)
	result := l.dir.Lookup(lookupCtx, address)

	cancel()

	closed = true
	_ = conn.Close()

	span.SetAttributes(attribute.String("lookup.status", result.Status.String()))
	recordConnection(result.Status.String())

	switch result.Status {
	case models.LookupFound:
		logIdentity(connLog.Info(), result.Identity).Msg("Accepted connection from known device")

		if err := l.notifier.Notify(address); err != nil {
			connLog.Debug().Err(err).Msg("Notification not queued")
		}
	case models.LookupNotFound:
		connLog.Info().Str("address", address).Msg("Connection from unknown address")
	case models.LookupFailed:
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "directory lookup")
		connLog.Error().Err(result.Err).Str("address", address).Msg("Directory lookup failed, dropping connection")
	}
}

func logIdentity(e *zerolog.Event, id models.DeviceIdentity) *zerolog.Event {
	return e.
		Str("address", id.Address).
		Str("device", id.DeviceName).
		Str("organization", id.Organization).
		Str("location", id.Location).
		Bool("static_ip", id.StaticIP)
}

func peerAddress(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return directory.NormalizeAddress(tcp.IP.String())
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return directory.NormalizeAddress(addr.String())
	}

	return directory.NormalizeAddress(host)
}
