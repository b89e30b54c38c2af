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

// DeviceIdentity describes a field appliance keyed by its source address.
type DeviceIdentity struct {
	Address              string `json:"ip_address"`
	DeviceName           string `json:"device_name"`
	Organization         string `json:"client_name"`
	Location             string `json:"location_name"`
	StaticIP             bool   `json:"is_static_ip"`
	NotificationEndpoint string `json:"push_url"`
}

// LookupStatus discriminates the outcome of a directory lookup.
type LookupStatus int

const (
	// LookupNotFound means the directory answered and does not know the address.
	LookupNotFound LookupStatus = iota
	// LookupFound means Identity is populated.
	LookupFound
	// LookupFailed means the directory could not be consulted; Err is set.
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LookupResult is the total result of resolving an address.
type LookupResult struct {
	Status   LookupStatus
	Identity DeviceIdentity
	Err      error
}

// Found builds a successful lookup result.
func Found(identity DeviceIdentity) LookupResult {
	return LookupResult{Status: LookupFound, Identity: identity}
}

// NotFound builds a lookup result for an unknown address.
func NotFound() LookupResult {
	return LookupResult{Status: LookupNotFound}
}

// LookupError builds a lookup result for a directory failure.
func LookupError(err error) LookupResult {
	return LookupResult{Status: LookupFailed, Err: err}
}
