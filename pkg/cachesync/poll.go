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

package cachesync

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carverauto/tcpresponder/pkg/clock"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

// State is the poll agent's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// PollAgent refreshes the cache whenever the store's newest mutation is
// newer than the cache marker.
type PollAgent struct {
	cache        Cache
	loader       *Loader
	interval     time.Duration
	queryTimeout time.Duration
	startupDelay time.Duration
	clock        clock.Clock
	log          logger.Logger

	state atomic.Int32
}

type PollOption func(*PollAgent)

func WithPollClock(c clock.Clock) PollOption {
	return func(a *PollAgent) {
		a.clock = c
	}
}

func WithQueryTimeout(d time.Duration) PollOption {
	return func(a *PollAgent) {
		if d > 0 {
			a.queryTimeout = d
		}
	}
}

// WithStartupDelay postpones the first cycle, giving the store time to come
// up alongside the responder.
func WithStartupDelay(d time.Duration) PollOption {
	return func(a *PollAgent) {
		a.startupDelay = d
	}
}

func NewPollAgent(c Cache, loader *Loader, interval time.Duration, log logger.Logger, opts ...PollOption) *PollAgent {
	if interval <= 0 {
		interval = models.DefaultPollInterval
	}

	a := &PollAgent{
		cache:        c,
		loader:       loader,
		interval:     interval,
		queryTimeout: models.DefaultQueryTimeout,
		clock:        clock.Real(),
		log:          log,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (*PollAgent) Name() string { return "poll-sync" }

// State reports the current cycle state.
func (a *PollAgent) State() State {
	return State(a.state.Load())
}

// Run polls until ctx is done. Store failures are logged and retried on the
// next tick.
func (a *PollAgent) Run(ctx context.Context) error {
	a.log.Info().
		Str("relation", a.loader.Relation()).
		Dur("interval", a.interval).
		Msg("Poll sync agent started")

	defer a.log.Info().Msg("Poll sync agent stopped")

	if a.startupDelay > 0 && !a.sleep(ctx, a.startupDelay) {
		return nil
	}

	ticker := a.clock.Ticker(a.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Str("relation", a.loader.Relation()).Msg("Poll sync cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce performs a single check and returns the state it reached: Fresh
// when the cache already covers the store, Stale when it refreshed (or
// tried to). Store calls run detached from ctx cancellation, bounded by the
// query timeout, so a stop never aborts a read halfway; a stop observed
// between the two reads prevents the second one.
func (a *PollAgent) RunOnce(ctx context.Context) (State, error) {
	ctx, span := logger.GetTracer(tracerName).Start(ctx, "cachesync.poll")
	defer span.End()

	a.state.Store(int32(StateChecking))
	defer a.state.Store(int32(StateIdle))

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.queryTimeout)
	defer cancel()

	storeTs, err := a.loader.MaxMutationTimestamp(storeCtx)
	if err != nil {
		recordPollCycle(resultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "max mutation timestamp")

		return StateIdle, err
	}

	marker, ok := a.cache.LastRefreshed()
	if ok && !storeTs.After(marker) {
		a.state.Store(int32(StateFresh))
		recordPollCycle(resultFresh)
		span.SetAttributes(attribute.String("sync.state", StateFresh.String()))

		return StateFresh, nil
	}

	a.state.Store(int32(StateStale))
	span.SetAttributes(attribute.String("sync.state", StateStale.String()))

	if err := ctx.Err(); err != nil {
		return StateStale, err
	}

	rows, err := a.loader.Rows(storeCtx)
	if err != nil {
		recordPollCycle(resultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read joined rows")

		return StateStale, err
	}

	a.cache.Set(rows, storeTs)
	recordPollCycle(resultStale)

	a.log.Debug().
		Int("records", len(rows)).
		Time("watermark", storeTs).
		Bool("had_marker", ok).
		Msg("Poll sync refreshed heartbeat cache")

	return StateStale, nil
}

func (a *PollAgent) sleep(ctx context.Context, d time.Duration) bool {
	t := a.clock.Ticker(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
