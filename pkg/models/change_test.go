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

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeOperation(t *testing.T) {
	for raw, want := range map[string]ChangeOperation{
		"INSERT": OpInsert,
		"c":      OpInsert,
		"update": OpUpdate,
		" U ":    OpUpdate,
		"DELETE": OpDelete,
		"d":      OpDelete,
	} {
		got, err := ParseChangeOperation(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseChangeOperation("r")
	require.ErrorIs(t, err, ErrUnknownOperation)

	_, err = ParseChangeOperation("TRUNCATE")
	require.ErrorIs(t, err, ErrUnknownOperation)
}

func TestChangeEventAffects(t *testing.T) {
	assert.True(t, ChangeEvent{Relation: "heartbeat", Operation: OpUpdate}.Affects(HeartbeatRelation))
	assert.True(t, ChangeEvent{Relation: "Heartbeat", Operation: OpDelete}.Affects(HeartbeatRelation))
	assert.False(t, ChangeEvent{Relation: "monitor", Operation: OpUpdate}.Affects(HeartbeatRelation))
	assert.False(t, ChangeEvent{Relation: "heartbeat", Operation: "truncate"}.Affects(HeartbeatRelation))
}

func TestCacheSnapshotExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilSnapshot *CacheSnapshot
	assert.True(t, nilSnapshot.Expired(now))
	assert.Zero(t, nilSnapshot.Len())

	s := &CacheSnapshot{Records: make([]HeartbeatRecord, 2), ExpiresAt: now.Add(time.Second)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Second)))
	assert.Equal(t, 2, s.Len())
}

func TestLookupResultConstructors(t *testing.T) {
	found := Found(DeviceIdentity{Address: "10.0.0.5"})
	assert.Equal(t, LookupFound, found.Status)
	assert.Equal(t, "found", found.Status.String())

	assert.Equal(t, "not_found", NotFound().Status.String())

	failed := LookupError(assert.AnError)
	assert.Equal(t, LookupFailed, failed.Status)
	assert.ErrorIs(t, failed.Err, assert.AnError)
}
