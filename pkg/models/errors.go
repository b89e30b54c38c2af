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

import "errors"

var (
	ErrUnknownOperation = errors.New("unknown change operation")

	errInvalidDuration          = errors.New("invalid duration")
	errDatabaseRequired         = errors.New("database configuration is required")
	errDatabaseAddressRequired  = errors.New("database host is required")
	errDatabaseNameRequired     = errors.New("database name is required")
	errNATSRequired             = errors.New("nats url is required")
	errDirectoryBucketRequired  = errors.New("directory bucket is required for nats_kv backend")
	errUnknownDirectory         = errors.New("unknown directory backend")
	errJetStreamSubjectRequired = errors.New("jetstream feed requires stream and subject")
)
