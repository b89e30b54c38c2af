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

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/tcpresponder/pkg/cache"

	metricLookups = "heartbeat_cache_lookups_total"
	metricUpdates = "heartbeat_cache_updates_total"

	resultHit  = "hit"
	resultMiss = "miss"

	opSet        = "set"
	opInvalidate = "invalidate"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	lookupCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	updateCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	lookups, err := meter.Int64Counter(
		metricLookups,
		metric.WithDescription("Heartbeat cache reads by result"),
	)
	if err != nil {
		otel.Handle(err)
	}
	lookupCounter = lookups

	updates, err := meter.Int64Counter(
		metricUpdates,
		metric.WithDescription("Heartbeat cache snapshot replacements and invalidations"),
	)
	if err != nil {
		otel.Handle(err)
	}
	updateCounter = updates
}

func recordLookup(result string) {
	meterOnce.Do(initMeter)
	if lookupCounter == nil {
		return
	}

	lookupCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordUpdate(op string) {
	meterOnce.Do(initMeter)
	if updateCounter == nil {
		return
	}

	updateCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}
