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

// Package notifier delivers best-effort connection notifications to each
// device's monitoring endpoint.
package notifier

import (
	"errors"
	"strings"
)

var (
	ErrQueueFull          = errors.New("notification queue full")
	ErrMissingEndpoint    = errors.New("device has no notification endpoint")
	ErrNotificationFailed = errors.New("notification failed")
	ErrDispatcherStopped  = errors.New("dispatcher stopped")
)

const (
	// Placeholder is the query fragment rewritten with the connection source.
	Placeholder = "msg=OK"

	messagePrefix = "msg=Connection_from_"
)

// BuildNotificationURL rewrites every Placeholder in endpoint to
// msg=Connection_from_<address>. When endpoint carries no placeholder it is
// returned unchanged and substituted is false.
func BuildNotificationURL(endpoint, address string) (target string, substituted bool) {
	if !strings.Contains(endpoint, Placeholder) {
		return endpoint, false
	}

	return strings.ReplaceAll(endpoint, Placeholder, messagePrefix+address), true
}
