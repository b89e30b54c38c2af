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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/tcpresponder/pkg/cache"
	"github.com/carverauto/tcpresponder/pkg/cdc"
	"github.com/carverauto/tcpresponder/pkg/clock"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

// chanSubscription delivers events from a channel until closed.
type chanSubscription struct {
	events    chan models.ChangeEvent
	closed    chan struct{}
	closeOnce sync.Once
}

func newChanSubscription() *chanSubscription {
	return &chanSubscription{
		events: make(chan models.ChangeEvent),
		closed: make(chan struct{}),
	}
}

func (s *chanSubscription) Next(ctx context.Context) (models.ChangeEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return models.ChangeEvent{}, cdc.ErrFeedTerminated
	case <-ctx.Done():
		return models.ChangeEvent{}, ctx.Err()
	}
}

func (s *chanSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func runAgent(t *testing.T, agent *StreamAgent) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- agent.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return cancel, done
}

func TestStreamInvalidatesOnHeartbeatChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	sub := newChanSubscription()

	feed.EXPECT().Name().Return("test").AnyTimes()
	feed.EXPECT().Subscribe(gomock.Any()).Return(sub, nil)

	c := cache.New(time.Minute)
	c.Set(heartbeats(1, 1), t0)

	runAgent(t, NewStreamAgent(feed, c, "", time.Second, logger.NewTestLogger()))

	sub.events <- models.ChangeEvent{Relation: "monitor", Operation: models.OpUpdate}
	sub.events <- models.ChangeEvent{Relation: "monitor", Operation: models.OpDelete}

	_, ok := c.Get()
	assert.True(t, ok, "changes to other relations keep the snapshot")

	sub.events <- models.ChangeEvent{Relation: "heartbeat", Operation: models.OpUpdate}

	require.Eventually(t, func() bool {
		_, ok := c.LastRefreshed()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// A change event followed by a poll cycle: the read in between misses and
// the poll repopulates with the updated rows.
func TestInvalidationThenPollRepopulates(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	store := NewMockStoreReader(ctrl)
	sub := newChanSubscription()

	feed.EXPECT().Name().Return("test").AnyTimes()
	feed.EXPECT().Subscribe(gomock.Any()).Return(sub, nil)

	c := cache.New(time.Minute)
	c.Set(heartbeats(1, 1, 2), t0)

	runAgent(t, NewStreamAgent(feed, c, heartbeatTable, time.Second, logger.NewTestLogger()))

	sub.events <- models.ChangeEvent{Relation: heartbeatTable, Operation: models.OpUpdate}
	// a second send completes only after the first event was handled
	sub.events <- models.ChangeEvent{Relation: "monitor", Operation: models.OpUpdate}

	_, ok := c.Get()
	require.False(t, ok)

	t1 := t0.Add(time.Second)
	store.EXPECT().MaxMutationTimestamp(gomock.Any(), heartbeatTable).Return(t1, nil)
	store.EXPECT().ReadJoinedRows(gomock.Any(), heartbeatTable).Return(heartbeats(0, 1, 2), nil)

	state, err := newPollAgent(store, c).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStale, state)

	snapshot, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, heartbeats(0, 1, 2), snapshot.Records)
	assert.Equal(t, t1, snapshot.RefreshedAt)
}

func TestStreamResubscribesAfterBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	clk := clock.NewMockClock(ctrl)
	ticker := clock.NewMockTicker(ctrl)

	failing := cdc.NewMockSubscription(ctrl)
	failing.EXPECT().Next(gomock.Any()).Return(models.ChangeEvent{}, errors.New("replication slot dropped"))
	failing.EXPECT().Close().Return(nil).MinTimes(1)

	resubscribed := make(chan struct{})
	healthy := newChanSubscription()

	tick := make(chan time.Time, 1)
	var tickRO <-chan time.Time = tick

	feed.EXPECT().Name().Return("test").AnyTimes()
	clk.EXPECT().Ticker(5 * time.Second).Return(ticker)
	ticker.EXPECT().Chan().Return(tickRO)
	ticker.EXPECT().Stop()

	gomock.InOrder(
		feed.EXPECT().Subscribe(gomock.Any()).Return(failing, nil),
		feed.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(context.Context) (cdc.Subscription, error) {
			close(resubscribed)
			return healthy, nil
		}),
	)

	c := cache.New(time.Minute)

	runAgent(t, NewStreamAgent(feed, c, "", 5*time.Second, logger.NewTestLogger(), WithStreamClock(clk)))

	select {
	case <-resubscribed:
		t.Fatal("resubscribed before the backoff elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	tick <- t0

	select {
	case <-resubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not resubscribe after the backoff")
	}

	c.Set(heartbeats(1, 1), t0)
	healthy.events <- models.ChangeEvent{Relation: heartbeatTable, Operation: models.OpInsert}

	require.Eventually(t, func() bool {
		_, ok := c.Get()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestStreamRetriesSubscribeFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	healthy := newChanSubscription()
	subscribed := make(chan struct{})

	feed.EXPECT().Name().Return("test").AnyTimes()
	gomock.InOrder(
		feed.EXPECT().Subscribe(gomock.Any()).Return(nil, errors.New("connection refused")),
		feed.EXPECT().Subscribe(gomock.Any()).Return(nil, io.EOF),
		feed.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(context.Context) (cdc.Subscription, error) {
			close(subscribed)
			return healthy, nil
		}),
	)

	runAgent(t, NewStreamAgent(feed, cache.New(time.Minute), "", 10*time.Millisecond, logger.NewTestLogger()))

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("agent gave up after subscribe failures")
	}
}

func TestStreamStopUnblocksNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	sub := newChanSubscription()
	subscribed := make(chan struct{})

	feed.EXPECT().Name().Return("test").AnyTimes()
	feed.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(context.Context) (cdc.Subscription, error) {
		close(subscribed)
		return sub, nil
	})

	agent := NewStreamAgent(feed, cache.New(time.Minute), "", time.Hour, logger.NewTestLogger())
	done := make(chan error, 1)

	go func() { done <- agent.Run(context.Background()) }()

	<-subscribed
	agent.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not end Run")
	}

	select {
	case <-sub.closed:
	default:
		t.Fatal("subscription was not closed")
	}
}

func TestStreamStopBeforeRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := cdc.NewMockFeed(ctrl)
	feed.EXPECT().Name().Return("test").AnyTimes()

	agent := NewStreamAgent(feed, cache.New(time.Minute), "", time.Second, logger.NewTestLogger())
	agent.Stop()

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, "stream-sync/test", agent.Name())
}
