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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/carverauto/tcpresponder/pkg/notifier"
	tracerName = "github.com/carverauto/tcpresponder/pkg/notifier"

	metricDispatches = "notifier_dispatches_total"
	metricFallbacks  = "notifier_placeholder_fallbacks_total"
	metricQueueDepth = "notifier_queue_depth"
	attributeOutcome = "outcome"

	outcomeSent       = "sent"
	outcomeFailed     = "failed"
	outcomeNoEndpoint = "no_endpoint"
	outcomeDropped    = "dropped"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	dispatchCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	fallbackCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	queueDepth metric.Int64UpDownCounter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	dispatchCounter, err = meter.Int64Counter(
		metricDispatches,
		metric.WithDescription("Notification dispatches by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}

	fallbackCounter, err = meter.Int64Counter(
		metricFallbacks,
		metric.WithDescription("Endpoints sent unmodified because they lack the msg=OK placeholder"),
	)
	if err != nil {
		otel.Handle(err)
	}

	queueDepth, err = meter.Int64UpDownCounter(
		metricQueueDepth,
		metric.WithDescription("Notifications waiting for a worker"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func recordDispatch(outcome string) {
	meterOnce.Do(initMeter)
	if dispatchCounter == nil {
		return
	}

	dispatchCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String(attributeOutcome, outcome)))
}

// recordPlaceholderFallback counts endpoints without the placeholder. It is
// separate from the dispatch outcome, which is still recorded once.
func recordPlaceholderFallback() {
	meterOnce.Do(initMeter)
	if fallbackCounter == nil {
		return
	}

	fallbackCounter.Add(context.Background(), 1)
}

func recordQueueDelta(delta int64) {
	meterOnce.Do(initMeter)
	if queueDepth == nil {
		return
	}

	queueDepth.Add(context.Background(), delta)
}
