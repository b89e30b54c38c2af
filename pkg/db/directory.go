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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/tcpresponder/pkg/directory"
	"github.com/carverauto/tcpresponder/pkg/models"
)

// Directory resolves devices from the allowed source address table.
type Directory struct {
	db    Querier
	table string
}

var _ directory.Directory = (*Directory)(nil)

func NewDirectory(db Querier, table string) *Directory {
	if table == "" {
		table = models.DefaultDirectoryTable
	}

	return &Directory{db: db, table: table}
}

func (d *Directory) Lookup(ctx context.Context, address string) models.LookupResult {
	query := fmt.Sprintf(`
		SELECT ip_address, COALESCE(device_name, ''), client_name, location_name,
		       is_static_ip, COALESCE(push_url, '')
		FROM %s
		WHERE ip_address = $1`, pgx.Identifier{d.table}.Sanitize())

	var identity models.DeviceIdentity

	err := d.db.QueryRow(ctx, query, directory.NormalizeAddress(address)).Scan(
		&identity.Address,
		&identity.DeviceName,
		&identity.Organization,
		&identity.Location,
		&identity.StaticIP,
		&identity.NotificationEndpoint,
	)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return models.NotFound()
	case err != nil:
		return models.LookupError(fmt.Errorf("%w: %w", directory.ErrLookupFailed, err))
	default:
		return models.Found(identity)
	}
}

func (d *Directory) NotificationEndpoint(ctx context.Context, address string) (string, error) {
	query := fmt.Sprintf("SELECT COALESCE(push_url, '') FROM %s WHERE ip_address = $1",
		pgx.Identifier{d.table}.Sanitize())

	var endpoint string

	err := d.db.QueryRow(ctx, query, directory.NormalizeAddress(address)).Scan(&endpoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", directory.ErrLookupFailed, err)
	}

	return endpoint, nil
}
