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

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// EnsureDirectorySchema creates the allowed address table when missing.
func EnsureDirectorySchema(ctx context.Context, db Querier, table string) error {
	if table == "" {
		table = models.DefaultDirectoryTable
	}

	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            BIGSERIAL PRIMARY KEY,
			ip_address    VARCHAR(45) UNIQUE NOT NULL,
			device_name   VARCHAR(255) DEFAULT '',
			client_name   VARCHAR(255) NOT NULL,
			location_name VARCHAR(255) NOT NULL,
			is_static_ip  BOOLEAN NOT NULL,
			push_url      TEXT DEFAULT '',
			created_at    TIMESTAMPTZ DEFAULT now()
		)`, pgx.Identifier{table}.Sanitize())

	if _, err := db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailedToInit, table, err)
	}

	return nil
}
