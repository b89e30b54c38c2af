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

package responder

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/carverauto/tcpresponder/pkg/responder"
	tracerName = "github.com/carverauto/tcpresponder/pkg/responder"

	metricConnections  = "responder_connections_total"
	metricAcceptErrors = "responder_accept_errors_total"
	metricInFlight     = "responder_connections_in_flight"

	resultShed  = "shed"
	resultPanic = "panic"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	connectionCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	acceptErrorCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	inFlightGauge metric.Int64UpDownCounter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	connectionCounter, err = meter.Int64Counter(
		metricConnections,
		metric.WithDescription("Inbound connections by handling result"),
	)
	if err != nil {
		otel.Handle(err)
	}

	acceptErrorCounter, err = meter.Int64Counter(
		metricAcceptErrors,
		metric.WithDescription("Failed accept calls"),
	)
	if err != nil {
		otel.Handle(err)
	}

	inFlightGauge, err = meter.Int64UpDownCounter(
		metricInFlight,
		metric.WithDescription("Connections currently being handled"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func recordConnection(result string) {
	meterOnce.Do(initMeter)
	if connectionCounter == nil {
		return
	}

	connectionCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordAcceptError() {
	meterOnce.Do(initMeter)
	if acceptErrorCounter == nil {
		return
	}

	acceptErrorCounter.Add(context.Background(), 1)
}

func recordInFlight(delta int64) {
	meterOnce.Do(initMeter)
	if inFlightGauge == nil {
		return
	}

	inFlightGauge.Add(context.Background(), delta)
}
