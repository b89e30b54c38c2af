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

package directory

import (
	"context"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// Static is an in-memory directory built from configuration.
type Static struct {
	devices map[string]models.DeviceIdentity
}

var _ Directory = (*Static)(nil)

func NewStatic(devices []models.DeviceIdentity) *Static {
	s := &Static{devices: make(map[string]models.DeviceIdentity, len(devices))}

	for _, d := range devices {
		d.Address = NormalizeAddress(d.Address)
		s.devices[d.Address] = d
	}

	return s
}

func (s *Static) Lookup(_ context.Context, address string) models.LookupResult {
	d, ok := s.devices[NormalizeAddress(address)]
	if !ok {
		return models.NotFound()
	}

	return models.Found(d)
}

func (s *Static) NotificationEndpoint(_ context.Context, address string) (string, error) {
	return s.devices[NormalizeAddress(address)].NotificationEndpoint, nil
}
