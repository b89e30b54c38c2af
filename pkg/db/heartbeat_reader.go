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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// HeartbeatReader runs the two read queries the sync agents need against
// the heartbeat relation and its monitor join.
type HeartbeatReader struct {
	db              Querier
	monitorRelation string
}

func NewHeartbeatReader(db Querier, monitorRelation string) *HeartbeatReader {
	if monitorRelation == "" {
		monitorRelation = models.DefaultMonitorRelation
	}

	return &HeartbeatReader{db: db, monitorRelation: monitorRelation}
}

// MaxMutationTimestamp returns the newest updated_at of relation. An empty
// relation yields the zero time.
func (r *HeartbeatReader) MaxMutationTimestamp(ctx context.Context, relation string) (time.Time, error) {
	query := fmt.Sprintf("SELECT MAX(updated_at) FROM %s", pgx.Identifier{relation}.Sanitize())

	var ts *time.Time

	if err := r.db.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("%w: max mutation timestamp of %s: %w", ErrStoreUnavailable, relation, err)
	}

	if ts == nil {
		return time.Time{}, nil
	}

	return ts.UTC(), nil
}

// ReadJoinedRows returns every heartbeat row of relation joined with its
// monitor, oldest first.
func (r *HeartbeatReader) ReadJoinedRows(ctx context.Context, relation string) ([]models.HeartbeatRecord, error) {
	query := fmt.Sprintf(`
		SELECT h.id, h.monitor_id, h.status, COALESCE(h.msg, ''), h.time, h.ping,
		       h.updated_at, COALESCE(m.name, ''), COALESCE(m.type, ''), COALESCE(m.active, false)
		FROM %s h
		JOIN %s m ON h.monitor_id = m.id
		ORDER BY h.time, h.id`,
		pgx.Identifier{relation}.Sanitize(),
		pgx.Identifier{r.monitorRelation}.Sanitize(),
	)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, relation, err)
	}
	defer rows.Close()

	var records []models.HeartbeatRecord

	for rows.Next() {
		var rec models.HeartbeatRecord

		if err := rows.Scan(
			&rec.ID,
			&rec.MonitorID,
			&rec.Status,
			&rec.Message,
			&rec.Time,
			&rec.Ping,
			&rec.UpdatedAt,
			&rec.Monitor.Name,
			&rec.Monitor.Type,
			&rec.Monitor.Active,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, relation, err)
	}

	return records, nil
}
