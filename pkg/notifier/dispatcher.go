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

package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/carverauto/tcpresponder/pkg/directory"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const maxDrainBytes = 4096

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type job struct {
	address  string
	enqueued time.Time
}

// Dispatcher sends one HTTP GET per notification from a fixed worker pool.
// Notify never blocks: when the queue is full the notification is dropped.
// There are no retries.
type Dispatcher struct {
	dir     directory.Directory
	client  HTTPDoer
	limiter *rate.Limiter
	timeout time.Duration
	workers int
	log     logger.Logger

	queue chan job

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	once    sync.Once
}

type Option func(*Dispatcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithRateLimit caps outbound requests across all workers. A non-positive
// rate disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}

		if burst <= 0 {
			burst = 1
		}

		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewDispatcher(dir directory.Directory, cfg models.NotifierConfig, log logger.Logger, opts ...Option) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = models.DefaultWorkers
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = models.DefaultQueueSize
	}

	timeout := time.Duration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = models.DefaultRequestTimeout
	}

	d := &Dispatcher{
		dir:     dir,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		workers: workers,
		log:     log,
		queue:   make(chan job, queueSize),
	}

	WithRateLimit(cfg.RatePerSecond, cfg.Burst)(d)

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (*Dispatcher) Name() string { return "notifier" }

// Start launches the worker pool. It is safe to call more than once.
// Workers keep draining the queue after ctx is done, until Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		base := context.WithoutCancel(ctx)

		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)

			go d.worker(base)
		}

		d.log.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("Notification dispatcher started")
	})
}

// Run starts the workers, waits for ctx and then drains the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(ctx)

	<-ctx.Done()

	d.Stop()

	return nil
}

// Stop refuses new notifications and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()

	d.log.Info().Msg("Notification dispatcher stopped")
}

// Notify enqueues a notification for address without blocking.
func (d *Dispatcher) Notify(address string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- job{address: address, enqueued: time.Now()}:
		recordQueueDelta(1)

		return nil
	default:
		recordDispatch(outcomeDropped)
		d.log.Warn().Str("address", address).Int("queue_size", cap(d.queue)).Msg("Notification queue full, dropping notification")

		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for j := range d.queue {
		recordQueueDelta(-1)

		_ = d.dispatch(ctx, j)
	}
}

// dispatch resolves the endpoint and sends exactly one request. Every
// outcome is logged here; the error is returned for tests.
func (d *Dispatcher) dispatch(ctx context.Context, j job) error {
	ctx, span := logger.GetTracer(tracerName).Start(ctx, "notifier.dispatch")
	defer span.End()

	span.SetAttributes(attribute.String("net.peer.ip", j.address))

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	endpoint, err := d.dir.NotificationEndpoint(ctx, j.address)
	if err != nil {
		recordDispatch(outcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "endpoint lookup")
		d.log.Error().Err(err).Str("address", j.address).Msg("Failed to resolve notification endpoint")

		return err
	}

	if endpoint == "" {
		recordDispatch(outcomeNoEndpoint)
		d.log.Info().Str("address", j.address).Msg("No notification endpoint configured for device")

		return ErrMissingEndpoint
	}

	target, substituted := BuildNotificationURL(endpoint, j.address)
	if !substituted {
		recordPlaceholderFallback()
		d.log.Warn().
			Str("address", j.address).
			Str("endpoint", endpoint).
			Msg("Notification endpoint has no msg=OK placeholder, sending it unmodified")
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			recordDispatch(outcomeFailed)
			d.log.Error().Err(err).Str("address", j.address).Msg("Notification rate limit wait aborted")

			return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
		}
	}

	if err := d.send(ctx, target); err != nil {
		recordDispatch(outcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		d.log.Error().Err(err).Str("address", j.address).Str("url", target).Msg("Notification failed")

		return err
	}

	recordDispatch(outcomeSent)
	d.log.Info().
		Str("address", j.address).
		Str("url", target).
		Dur("queued", time.Since(j.enqueued)).
		Msg("Notification sent")

	return nil
}

func (d *Dispatcher) send(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrNotificationFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrNotificationFailed, resp.StatusCode)
	}

	return nil
}
