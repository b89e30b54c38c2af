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

// Package directory resolves the source address of an inbound connection to
// the device registered for it.
package directory

//go:generate mockgen -destination=mock_directory.go -package=directory github.com/carverauto/tcpresponder/pkg/directory Directory

import (
	"context"
	"errors"
	"net/netip"
	"strings"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// ErrLookupFailed marks a directory that could not be consulted, as opposed
// to one that answered "unknown".
var ErrLookupFailed = errors.New("directory lookup failed")

// Directory maps source addresses to device identities.
//
// Lookup is total: every outcome, including backend failures, is reported in
// the returned LookupResult. NotificationEndpoint returns "" with a nil error
// for an address without an endpoint.
type Directory interface {
	Lookup(ctx context.Context, address string) models.LookupResult
	NotificationEndpoint(ctx context.Context, address string) (string, error)
}

// NormalizeAddress renders IP literals canonically so "::ffff:10.0.0.5" and
// "10.0.0.5" resolve to the same device. Anything that is not an IP is
// returned trimmed.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)

	addr, err := netip.ParseAddr(address)
	if err != nil {
		return address
	}

	return addr.Unmap().String()
}
