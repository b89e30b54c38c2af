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
	"errors"
	"io"
	"sync"
	"time"

	"github.com/carverauto/tcpresponder/pkg/cdc"
	"github.com/carverauto/tcpresponder/pkg/clock"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

// StreamAgent invalidates the cache on every qualifying change event. It
// never patches rows: the next read or poll cycle repopulates.
type StreamAgent struct {
	feed     cdc.Feed
	cache    Cache
	relation string
	backoff  time.Duration
	clock    clock.Clock
	log      logger.Logger

	mu      sync.Mutex
	sub     cdc.Subscription
	cancel  context.CancelFunc
	stopped bool
}

type StreamOption func(*StreamAgent)

func WithStreamClock(c clock.Clock) StreamOption {
	return func(a *StreamAgent) {
		a.clock = c
	}
}

func NewStreamAgent(feed cdc.Feed, c Cache, relation string, backoff time.Duration, log logger.Logger, opts ...StreamOption) *StreamAgent {
	if relation == "" {
		relation = models.HeartbeatRelation
	}

	if backoff <= 0 {
		backoff = models.DefaultFeedBackoff
	}

	a := &StreamAgent{
		feed:     feed,
		cache:    c,
		relation: relation,
		backoff:  backoff,
		clock:    clock.Real(),
		log:      log,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *StreamAgent) Name() string { return "stream-sync/" + a.feed.Name() }

// Run consumes the feed until ctx is done or Stop is called. A stream that
// ends or fails is resubscribed after the backoff.
func (a *StreamAgent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}

	a.cancel = cancel
	a.mu.Unlock()

	a.log.Info().
		Str("feed", a.feed.Name()).
		Str("relation", a.relation).
		Msg("Change stream agent started")

	defer a.log.Info().Str("feed", a.feed.Name()).Msg("Change stream agent stopped")

	for {
		err := a.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, io.EOF) {
			a.log.Info().Str("feed", a.feed.Name()).Msg("Change stream ended, resubscribing")
		} else {
			a.log.Warn().Err(err).Str("feed", a.feed.Name()).Dur("backoff", a.backoff).Msg("Change stream failed, resubscribing")
		}

		recordResubscribe(a.feed.Name())

		if !a.wait(ctx) {
			return nil
		}
	}
}

// Stop cancels Run and closes the open subscription so a blocked Next
// returns.
func (a *StreamAgent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true

	if a.cancel != nil {
		a.cancel()
	}

	if a.sub != nil {
		_ = a.sub.Close()
	}
}

func (a *StreamAgent) consume(ctx context.Context) error {
	sub, err := a.feed.Subscribe(ctx)
	if err != nil {
		return err
	}

	if !a.track(sub) {
		_ = sub.Close()
		return ctx.Err()
	}

	defer a.untrack(sub)

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if !ev.Affects(a.relation) {
			continue
		}

		a.cache.Invalidate()
		recordInvalidation(a.feed.Name())

		a.log.Debug().
			Str("relation", ev.Relation).
			Str("op", string(ev.Operation)).
			Str("source", ev.Source).
			Msg("Change event invalidated heartbeat cache")
	}
}

func (a *StreamAgent) track(sub cdc.Subscription) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}

	a.sub = sub

	return true
}

func (a *StreamAgent) untrack(sub cdc.Subscription) {
	a.mu.Lock()
	if a.sub == sub {
		a.sub = nil
	}
	a.mu.Unlock()

	_ = sub.Close()
}

func (a *StreamAgent) wait(ctx context.Context) bool {
	t := a.clock.Ticker(a.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
