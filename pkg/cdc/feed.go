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

// Package cdc provides the change feeds that tell the cache a heartbeat row
// was written: Postgres LISTEN/NOTIFY and Debezium envelopes on JetStream.
package cdc

//go:generate mockgen -destination=mock_feed.go -package=cdc github.com/carverauto/tcpresponder/pkg/cdc Feed,Subscription

import (
	"context"
	"errors"

	"github.com/carverauto/tcpresponder/pkg/models"
)

var (
	// ErrFeedTerminated is returned by Next once the subscription ended,
	// either because it was closed or because the transport went away.
	ErrFeedTerminated = errors.New("change feed terminated")

	errEmptyPayload = errors.New("empty change payload")
	errNoRelation   = errors.New("change payload has no relation")
)

// Feed opens subscriptions to a stream of row mutations.
type Feed interface {
	Name() string
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is one open connection to a feed. Next blocks until an event
// arrives, ctx is done, or the subscription terminates. Close may be called
// from another goroutine to unblock Next.
type Subscription interface {
	Next(ctx context.Context) (models.ChangeEvent, error)
	Close() error
}
