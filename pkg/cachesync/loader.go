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

// Package cachesync keeps the heartbeat cache in step with the system of
// record. A PollAgent compares the store's newest mutation time with the
// cache marker and refreshes when the store is ahead; a StreamAgent
// invalidates on every change event. The agents share nothing but the cache.
package cachesync

//go:generate mockgen -destination=mock_store.go -package=cachesync github.com/carverauto/tcpresponder/pkg/cachesync StoreReader

import (
	"context"
	"time"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// StoreReader is the read side of the system of record.
type StoreReader interface {
	MaxMutationTimestamp(ctx context.Context, relation string) (time.Time, error)
	ReadJoinedRows(ctx context.Context, relation string) ([]models.HeartbeatRecord, error)
}

// Cache is the part of the heartbeat cache the agents drive.
type Cache interface {
	Set(records []models.HeartbeatRecord, watermark time.Time) *models.CacheSnapshot
	LastRefreshed() (time.Time, bool)
	Invalidate()
}

// Loader reads a relation together with the watermark it was read at.
type Loader struct {
	store    StoreReader
	relation string
}

func NewLoader(store StoreReader, relation string) *Loader {
	if relation == "" {
		relation = models.HeartbeatRelation
	}

	return &Loader{store: store, relation: relation}
}

func (l *Loader) Relation() string { return l.relation }

func (l *Loader) MaxMutationTimestamp(ctx context.Context) (time.Time, error) {
	return l.store.MaxMutationTimestamp(ctx, l.relation)
}

func (l *Loader) Rows(ctx context.Context) ([]models.HeartbeatRecord, error) {
	return l.store.ReadJoinedRows(ctx, l.relation)
}

// Load reads the watermark before the rows, so the rows are never older
// than the watermark stamped on them.
func (l *Loader) Load(ctx context.Context) ([]models.HeartbeatRecord, time.Time, error) {
	watermark, err := l.MaxMutationTimestamp(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	rows, err := l.Rows(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	return rows, watermark, nil
}
