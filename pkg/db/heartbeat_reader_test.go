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

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/models"
)

func TestMaxMutationTimestamp(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	q := &fakeQuerier{row: &fakeRow{values: []interface{}{t0}}}

	ts, err := NewHeartbeatReader(q, "").MaxMutationTimestamp(context.Background(), models.HeartbeatRelation)
	require.NoError(t, err)
	assert.Equal(t, t0, ts)
	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], `SELECT MAX(updated_at) FROM "heartbeat"`)
}

func TestMaxMutationTimestampEmptyRelation(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{values: []interface{}{nil}}}

	ts, err := NewHeartbeatReader(q, "").MaxMutationTimestamp(context.Background(), models.HeartbeatRelation)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestMaxMutationTimestampStoreError(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{err: errors.New("connection refused")}}

	_, err := NewHeartbeatReader(q, "").MaxMutationTimestamp(context.Background(), models.HeartbeatRelation)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func heartbeatRow(id int64, status int, ping interface{}, t time.Time) []interface{} {
	return []interface{}{id, id * 10, status, "up", t, ping, t, "router", "push", true}
}

func TestReadJoinedRows(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]interface{}{
		heartbeatRow(1, 1, 12.5, t0),
		heartbeatRow(2, 0, nil, t0.Add(time.Second)),
	}}
	q := &fakeQuerier{rows: rows}

	records, err := NewHeartbeatReader(q, "monitor").ReadJoinedRows(context.Background(), models.HeartbeatRelation)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(10), records[0].MonitorID)
	require.NotNil(t, records[0].Ping)
	assert.InDelta(t, 12.5, *records[0].Ping, 0.0001)
	assert.Equal(t, "router", records[0].Monitor.Name)
	assert.True(t, records[0].Monitor.Active)

	assert.Nil(t, records[1].Ping)
	assert.Equal(t, 0, records[1].Status)

	assert.True(t, rows.closed)
	assert.Contains(t, q.queries[0], `FROM "heartbeat" h`)
	assert.Contains(t, q.queries[0], `JOIN "monitor" m ON h.monitor_id = m.id`)
}

func TestReadJoinedRowsErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewHeartbeatReader(&fakeQuerier{queryErr: errors.New("timeout")}, "").ReadJoinedRows(ctx, "heartbeat")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = NewHeartbeatReader(&fakeQuerier{rows: &fakeRows{
		rows:    [][]interface{}{{1}},
		scanErr: errors.New("bad column"),
	}}, "").ReadJoinedRows(ctx, "heartbeat")
	require.ErrorIs(t, err, ErrFailedToScan)

	_, err = NewHeartbeatReader(&fakeQuerier{rows: &fakeRows{err: errors.New("reset by peer")}}, "").ReadJoinedRows(ctx, "heartbeat")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestReadJoinedRowsQuotesRelation(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}

	_, err := NewHeartbeatReader(q, "").ReadJoinedRows(context.Background(), `heartbeat"; DROP TABLE x; --`)
	require.NoError(t, err)
	assert.Contains(t, q.queries[0], `"heartbeat""; DROP TABLE x; --"`)
}
