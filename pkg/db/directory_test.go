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

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/directory"
	"github.com/carverauto/tcpresponder/pkg/models"
)

func TestDirectoryLookupFound(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{values: []interface{}{
		"10.0.0.5", "fw-01", "Acme", "HQ", true, "http://mon/x?msg=OK",
	}}}

	res := NewDirectory(q, "").Lookup(context.Background(), "::ffff:10.0.0.5")
	require.Equal(t, models.LookupFound, res.Status)
	assert.Equal(t, models.DeviceIdentity{
		Address:              "10.0.0.5",
		DeviceName:           "fw-01",
		Organization:         "Acme",
		Location:             "HQ",
		StaticIP:             true,
		NotificationEndpoint: "http://mon/x?msg=OK",
	}, res.Identity)

	assert.Equal(t, []interface{}{"10.0.0.5"}, q.args[0])
	assert.Contains(t, q.queries[0], `FROM "allowed_ips"`)
}

func TestDirectoryLookupNotFound(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{err: pgx.ErrNoRows}}

	res := NewDirectory(q, "").Lookup(context.Background(), "10.0.0.9")
	assert.Equal(t, models.LookupNotFound, res.Status)
	assert.NoError(t, res.Err)
}

func TestDirectoryLookupFailure(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{err: errors.New("connection refused")}}

	res := NewDirectory(q, "").Lookup(context.Background(), "10.0.0.5")
	assert.Equal(t, models.LookupFailed, res.Status)
	assert.ErrorIs(t, res.Err, directory.ErrLookupFailed)
}

func TestDirectoryNotificationEndpoint(t *testing.T) {
	ctx := context.Background()

	endpoint, err := NewDirectory(&fakeQuerier{row: &fakeRow{values: []interface{}{"http://mon/x?msg=OK"}}}, "devices").
		NotificationEndpoint(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "http://mon/x?msg=OK", endpoint)

	endpoint, err = NewDirectory(&fakeQuerier{row: &fakeRow{err: pgx.ErrNoRows}}, "").NotificationEndpoint(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Empty(t, endpoint)

	_, err = NewDirectory(&fakeQuerier{row: &fakeRow{err: errors.New("boom")}}, "").NotificationEndpoint(ctx, "10.0.0.5")
	require.ErrorIs(t, err, directory.ErrLookupFailed)
}

func TestEnsureDirectorySchema(t *testing.T) {
	q := &fakeQuerier{}

	require.NoError(t, EnsureDirectorySchema(context.Background(), q, ""))
	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], `CREATE TABLE IF NOT EXISTS "allowed_ips"`)

	q = &fakeQuerier{execErr: errors.New("permission denied")}
	require.ErrorIs(t, EnsureDirectorySchema(context.Background(), q, "devices"), ErrFailedToInit)
}
