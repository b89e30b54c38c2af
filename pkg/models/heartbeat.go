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

// Package models holds the data types shared across the responder packages.
package models

import "time"

// HeartbeatRelation is the relation name heartbeat rows live in.
const HeartbeatRelation = "heartbeat"

// MonitorMeta is the monitor metadata joined onto each heartbeat row.
type MonitorMeta struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// HeartbeatRecord is a single heartbeat row joined with its monitor.
type HeartbeatRecord struct {
	ID        int64       `json:"id"`
	MonitorID int64       `json:"monitor_id"`
	Status    int         `json:"status"`
	Message   string      `json:"msg,omitempty"`
	Time      time.Time   `json:"time"`
	Ping      *float64    `json:"ping,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
	Monitor   MonitorMeta `json:"monitor"`
}

// CacheSnapshot is an immutable, fully materialized copy of the joined
// heartbeat rows. Records must not be modified by holders of a snapshot.
type CacheSnapshot struct {
	Records []HeartbeatRecord `json:"records"`
	// Watermark is the store mutation time the rows were read at. Zero when
	// the producer did not know it.
	Watermark   time.Time `json:"watermark"`
	RefreshedAt time.Time `json:"refreshed_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Len returns the number of records in the snapshot.
func (s *CacheSnapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Records)
}

// Expired reports whether the snapshot is past its TTL deadline at now.
func (s *CacheSnapshot) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}
