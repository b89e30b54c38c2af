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

import (
	"fmt"
	"strings"
)

// ChangeOperation is the kind of row mutation carried by a ChangeEvent.
type ChangeOperation string

const (
	OpInsert ChangeOperation = "insert"
	OpUpdate ChangeOperation = "update"
	OpDelete ChangeOperation = "delete"
)

// ParseChangeOperation accepts the spellings emitted by Postgres triggers
// (INSERT, UPDATE, DELETE) and Debezium (c, u, d).
func ParseChangeOperation(raw string) (ChangeOperation, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "insert", "c", "create":
		return OpInsert, nil
	case "update", "u":
		return OpUpdate, nil
	case "delete", "d":
		return OpDelete, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, raw)
	}
}

// ChangeEvent is a single row-mutation notification from a change feed.
type ChangeEvent struct {
	Relation  string          `json:"relation"`
	Operation ChangeOperation `json:"op"`
	Source    string          `json:"-"`
}

// Affects reports whether the event is a qualifying mutation of relation.
func (e ChangeEvent) Affects(relation string) bool {
	if !strings.EqualFold(e.Relation, relation) {
		return false
	}

	switch e.Operation {
	case OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}
