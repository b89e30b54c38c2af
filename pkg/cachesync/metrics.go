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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/carverauto/tcpresponder/pkg/cachesync"
	tracerName = "github.com/carverauto/tcpresponder/pkg/cachesync"

	metricPollCycles    = "heartbeat_sync_poll_cycles_total"
	metricInvalidations = "heartbeat_sync_invalidations_total"
	metricResubscribes  = "heartbeat_sync_resubscribes_total"

	resultFresh = "fresh"
	resultStale = "stale"
	resultError = "error"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	pollCycleCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	invalidationCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	resubscribeCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	pollCycleCounter, err = meter.Int64Counter(
		metricPollCycles,
		metric.WithDescription("Poll sync cycles by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}

	invalidationCounter, err = meter.Int64Counter(
		metricInvalidations,
		metric.WithDescription("Cache invalidations triggered by change events"),
	)
	if err != nil {
		otel.Handle(err)
	}

	resubscribeCounter, err = meter.Int64Counter(
		metricResubscribes,
		metric.WithDescription("Change feed resubscriptions after a stream ended or failed"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func recordPollCycle(result string) {
	meterOnce.Do(initMeter)
	if pollCycleCounter == nil {
		return
	}

	pollCycleCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordInvalidation(source string) {
	meterOnce.Do(initMeter)
	if invalidationCounter == nil {
		return
	}

	invalidationCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

func recordResubscribe(source string) {
	meterOnce.Do(initMeter)
	if resubscribeCounter == nil {
		return
	}

	resubscribeCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}
