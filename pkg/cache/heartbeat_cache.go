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

// Package cache holds the in-memory heartbeat snapshot that shields the
// system of record from read pressure.
package cache

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/carverauto/tcpresponder/pkg/clock"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = models.DefaultCacheTTL

// HeartbeatCache is a cache-aside store holding at most one snapshot.
//
// The snapshot is published through an atomic pointer and never mutated
// after publication, so readers never observe a partially built snapshot
// and concurrent Set/Invalidate calls resolve as last writer wins.
type HeartbeatCache struct {
	ttl    time.Duration
	clock  clock.Clock
	logger logger.Logger

	current atomic.Pointer[models.CacheSnapshot]

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
}

// Option configures a HeartbeatCache.
type Option func(*HeartbeatCache)

func WithClock(c clock.Clock) Option {
	return func(h *HeartbeatCache) {
		h.clock = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(h *HeartbeatCache) {
		h.logger = l
	}
}

func New(ttl time.Duration, opts ...Option) *HeartbeatCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	h := &HeartbeatCache{
		ttl:    ttl,
		clock:  clock.Real(),
		logger: logger.NewTestLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// TTL returns the configured time-to-live.
func (h *HeartbeatCache) TTL() time.Duration {
	return h.ttl
}

// Get returns the current snapshot, or false when there is none or it has
// outlived its TTL. The returned snapshot must be treated as read-only.
func (h *HeartbeatCache) Get() (*models.CacheSnapshot, bool) {
	snapshot, ok := h.live()
	if !ok {
		h.misses.Add(1)
		recordLookup(resultMiss)

		return nil, false
	}

	h.hits.Add(1)
	recordLookup(resultHit)

	return snapshot, true
}

// Set installs records as the current snapshot and resets the TTL. The
// last-refreshed marker is the store watermark the rows were read at. A zero
// watermark (empty relation) stays zero, so any later store mutation is
// newer regardless of how the store clock compares with ours. RefreshedAt
// falls back to the cache clock for display only. records is copied.
func (h *HeartbeatCache) Set(records []models.HeartbeatRecord, watermark time.Time) *models.CacheSnapshot {
	now := h.clock.Now()

	refreshedAt := watermark
	if refreshedAt.IsZero() {
		refreshedAt = now
	}

	snapshot := &models.CacheSnapshot{
		Records:     slices.Clone(records),
		Watermark:   watermark,
		RefreshedAt: refreshedAt,
		ExpiresAt:   now.Add(h.ttl),
	}

	if snapshot.Records == nil {
		snapshot.Records = []models.HeartbeatRecord{}
	}

	h.current.Store(snapshot)
	h.sets.Add(1)
	recordUpdate(opSet)

	h.logger.Debug().
		Int("records", len(snapshot.Records)).
		Time("refreshed_at", snapshot.RefreshedAt).
		Time("expires_at", snapshot.ExpiresAt).
		Msg("Heartbeat cache refreshed")

	return snapshot
}

// Invalidate drops the snapshot and its marker. It is a no-op on an empty
// cache.
func (h *HeartbeatCache) Invalidate() {
	if previous := h.current.Swap(nil); previous == nil {
		return
	}

	h.invalidations.Add(1)
	recordUpdate(opInvalidate)

	h.logger.Debug().Msg("Heartbeat cache invalidated")
}

// LastRefreshed returns the store watermark of the live snapshot, which may
// be the zero time. An expired snapshot reports no marker.
func (h *HeartbeatCache) LastRefreshed() (time.Time, bool) {
	snapshot, ok := h.live()
	if !ok {
		return time.Time{}, false
	}

	return snapshot.Watermark, true
}

func (h *HeartbeatCache) live() (*models.CacheSnapshot, bool) {
	snapshot := h.current.Load()
	if snapshot == nil || snapshot.Expired(h.clock.Now()) {
		return nil, false
	}

	return snapshot, true
}

// Stats is a point-in-time view of the cache for the status endpoint.
type Stats struct {
	Present       bool      `json:"present"`
	Records       int       `json:"records"`
	RefreshedAt   time.Time `json:"refreshed_at,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	TTL           string    `json:"ttl"`
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Sets          int64     `json:"sets"`
	Invalidations int64     `json:"invalidations"`
}

func (h *HeartbeatCache) Stats() Stats {
	stats := Stats{
		TTL:           h.ttl.String(),
		Hits:          h.hits.Load(),
		Misses:        h.misses.Load(),
		Sets:          h.sets.Load(),
		Invalidations: h.invalidations.Load(),
	}

	if snapshot, ok := h.live(); ok {
		stats.Present = true
		stats.Records = snapshot.Len()
		stats.RefreshedAt = snapshot.RefreshedAt
		stats.ExpiresAt = snapshot.ExpiresAt
	}

	return stats
}
