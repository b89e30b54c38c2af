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

package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/logger"
)

func blockingService(name string, stopped *atomic.Int32) Service {
	return ServiceFunc{ServiceName: name, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Add(1)

		return ctx.Err()
	}}
}

func TestRunServicesStopsOnCancel(t *testing.T) {
	var stopped atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunServices(ctx, logger.NewTestLogger(),
			blockingService("a", &stopped), blockingService("b", &stopped))
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("services did not stop")
	}

	assert.Equal(t, int32(2), stopped.Load())
}

func TestRunServicesFailureCancelsOthers(t *testing.T) {
	var stopped atomic.Int32

	errBoom := errors.New("boom")
	failing := ServiceFunc{ServiceName: "failing", Fn: func(context.Context) error { return errBoom }}

	err := RunServices(context.Background(), logger.NewTestLogger(), failing, blockingService("a", &stopped))

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, int32(1), stopped.Load())
}

func TestChildTagsComponent(t *testing.T) {
	impl, err := NewLoggerImpl(context.Background(), &logger.Config{Level: "warn"})
	require.NoError(t, err)

	child := Child(impl, "listener")
	assert.NotNil(t, child.Warn())
}
